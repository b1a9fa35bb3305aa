//go:build integration

package e2e

import (
	"net/http"
	"strings"
	"testing"

	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/testutil"
)

// TestE2E_DocumentLifecycle uploads, lists, downloads and deletes a
// document, and checks that releasing the bed removes what is left.
func TestE2E_DocumentLifecycle(t *testing.T) {
	ts := SetupE2ETest(t)
	defer ts.Cleanup(t)

	_, token := ts.ApprovedUser(t, "dr.yang", auth.RoleMedicalOfficer)
	client := ts.NewClient(token)

	resp := client.POST(t, "/api/beds/2/assign", map[string]interface{}{
		"fullName": "Jane Doe",
		"gender":   "Female",
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	var assigned struct {
		Result struct {
			Patient struct {
				ID string `json:"id"`
			} `json:"patient"`
		} `json:"result"`
	}
	testutil.DecodeJSON(t, resp, &assigned)
	patientID := assigned.Result.Patient.ID

	// Unsupported extension
	resp = client.POSTMultipart(t, "/api/documents/upload",
		map[string]string{"patientId": patientID, "documentType": "other"},
		"files", []testutil.UploadFile{{Name: "run.exe", Content: []byte("MZ")}})
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)

	resp = client.POSTMultipart(t, "/api/documents/upload",
		map[string]string{"patientId": patientID, "documentType": "medical-report"},
		"files", []testutil.UploadFile{
			{Name: "notes.txt", Content: []byte("stable overnight")},
			{Name: "plan.txt", Content: []byte("wean oxygen")},
		})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var uploaded struct {
		Documents []struct {
			ID           string `json:"id"`
			OriginalName string `json:"originalName"`
			URL          string `json:"url"`
		} `json:"documents"`
	}
	testutil.DecodeJSON(t, resp, &uploaded)
	if len(uploaded.Documents) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(uploaded.Documents))
	}
	first := uploaded.Documents[0]

	// Local storage is also reachable through /uploads
	if !strings.HasPrefix(first.URL, "/uploads/patient-documents/") {
		t.Errorf("Unexpected document url %q", first.URL)
	}
	resp = ts.NewClient("").GET(t, first.URL)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = client.GET(t, "/api/documents/"+first.ID+"/download")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, first.OriginalName) {
		t.Errorf("Expected original filename in %q", cd)
	}
	if body := testutil.ReadBody(t, resp); body != "stable overnight" {
		t.Errorf("Unexpected content %q", body)
	}

	resp = client.DELETE(t, "/api/documents/"+first.ID)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	resp = client.GET(t, "/api/documents/"+first.ID)
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	resp = client.GET(t, "/api/documents/patient/"+patientID)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var listed struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
	}
	testutil.DecodeJSON(t, resp, &listed)
	if len(listed.Documents) != 1 {
		t.Fatalf("Expected 1 remaining document, got %d", len(listed.Documents))
	}

	resp = client.POST(t, "/api/beds/2/deassign", nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var released struct {
		Result struct {
			DocumentsRemoved int `json:"documentsRemoved"`
		} `json:"result"`
	}
	testutil.DecodeJSON(t, resp, &released)
	if released.Result.DocumentsRemoved != 1 {
		t.Errorf("Expected 1 document removed on release, got %d", released.Result.DocumentsRemoved)
	}
}
