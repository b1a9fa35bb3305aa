package bed

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/patient"
)

// mockService implements ServiceInterface for testing
type mockService struct {
	listFunc     func(ctx context.Context, status string) ([]Bed, error)
	getFunc      func(ctx context.Context, id int64) (*Bed, error)
	assignFunc   func(ctx context.Context, actorID string, id int64, req patient.AdmitRequest) (*AssignResult, error)
	deassignFunc func(ctx context.Context, actorID string, id int64) (*DeassignResult, error)
}

func (m *mockService) List(ctx context.Context, status string) ([]Bed, error) {
	return m.listFunc(ctx, status)
}

func (m *mockService) Get(ctx context.Context, id int64) (*Bed, error) {
	return m.getFunc(ctx, id)
}

func (m *mockService) Assign(ctx context.Context, actorID string, id int64, req patient.AdmitRequest) (*AssignResult, error) {
	return m.assignFunc(ctx, actorID, id, req)
}

func (m *mockService) Deassign(ctx context.Context, actorID string, id int64) (*DeassignResult, error) {
	return m.deassignFunc(ctx, actorID, id)
}

func withNurse(req *http.Request) *http.Request {
	return req.WithContext(auth.ContextWithPrincipal(req.Context(), &auth.Principal{UserID: "nurse-1", Role: auth.RoleNurse}))
}

func TestListByStatusHandler(t *testing.T) {
	var gotStatus string
	handler := NewHandler(&mockService{
		listFunc: func(ctx context.Context, status string) ([]Bed, error) {
			gotStatus = status
			return []Bed{{ID: 1, BedNumber: "HDU-01", Status: StatusAvailable}}, nil
		},
	})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/beds/status/available", nil), map[string]string{"status": "available"})
	rec := httptest.NewRecorder()
	handler.ListByStatus(rec, withNurse(req))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if gotStatus != StatusAvailable {
		t.Errorf("Expected status filter %q, got %q", StatusAvailable, gotStatus)
	}
	var resp ListResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Count != 1 || resp.Beds[0].BedNumber != "HDU-01" {
		t.Errorf("Unexpected response %+v", resp)
	}
}

func TestGetBedHandler_InvalidID(t *testing.T) {
	handler := NewHandler(&mockService{})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/beds/abc", nil), map[string]string{"id": "abc"})
	rec := httptest.NewRecorder()
	handler.GetBed(rec, withNurse(req))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestGetBedHandler_NotFound(t *testing.T) {
	handler := NewHandler(&mockService{
		getFunc: func(ctx context.Context, id int64) (*Bed, error) { return nil, ErrBedNotFound },
	})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/api/beds/42", nil), map[string]string{"id": "42"})
	rec := httptest.NewRecorder()
	handler.GetBed(rec, withNurse(req))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestAssignHandler(t *testing.T) {
	var gotID int64
	var gotReq patient.AdmitRequest
	handler := NewHandler(&mockService{
		assignFunc: func(ctx context.Context, actorID string, id int64, req patient.AdmitRequest) (*AssignResult, error) {
			gotID, gotReq = id, req
			pid := "patient-1"
			return &AssignResult{Bed: &Bed{ID: id, BedNumber: "HDU-03", PatientID: &pid, Status: StatusOccupied}, IsNewPatient: true}, nil
		},
	})

	body, _ := json.Marshal(map[string]interface{}{
		"fullName":          "A",
		"gender":            "Male",
		"isUrgentAdmission": false,
		"emergencyContacts": []map[string]string{{"name": "B", "phoneNumber": "555"}},
	})
	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/beds/3/assign", bytes.NewReader(body)), map[string]string{"id": "3"})
	rec := httptest.NewRecorder()
	handler.Assign(rec, withNurse(req))

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotID != 3 || gotReq.FullName != "A" || len(gotReq.EmergencyContacts) != 1 {
		t.Errorf("Unexpected call id=%d req=%+v", gotID, gotReq)
	}
}

func TestAssignHandler_OccupiedIsBadRequest(t *testing.T) {
	handler := NewHandler(&mockService{
		assignFunc: func(ctx context.Context, actorID string, id int64, req patient.AdmitRequest) (*AssignResult, error) {
			return nil, ErrBedOccupied
		},
	})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/beds/3/assign", bytes.NewBufferString(`{"fullName":"A","gender":"Male"}`)), map[string]string{"id": "3"})
	rec := httptest.NewRecorder()
	handler.Assign(rec, withNurse(req))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for conflict, got %d", rec.Code)
	}
}

func TestDeassignHandler_Unauthenticated(t *testing.T) {
	handler := NewHandler(&mockService{})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/beds/3/deassign", nil), map[string]string{"id": "3"})
	rec := httptest.NewRecorder()
	handler.Deassign(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestDeassignHandler(t *testing.T) {
	handler := NewHandler(&mockService{
		deassignFunc: func(ctx context.Context, actorID string, id int64) (*DeassignResult, error) {
			if actorID != "nurse-1" {
				t.Errorf("Expected actor nurse-1, got %s", actorID)
			}
			return &DeassignResult{Bed: &Bed{ID: id, Status: StatusAvailable}, PatientID: "patient-1", DocumentsRemoved: 2}, nil
		},
	})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/beds/3/deassign", nil), map[string]string{"id": "3"})
	rec := httptest.NewRecorder()
	handler.Deassign(rec, withNurse(req))

	var resp DeassignResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if rec.Code != http.StatusOK || resp.Result.DocumentsRemoved != 2 {
		t.Errorf("Unexpected response %d %+v", rec.Code, resp)
	}
}
