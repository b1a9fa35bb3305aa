//go:build integration

package e2e

import (
	"net/http"
	"testing"

	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/testutil"
)

// TestE2E_RegisterApproveLogin walks a new account from registration to a
// usable token.
func TestE2E_RegisterApproveLogin(t *testing.T) {
	ts := SetupE2ETest(t)
	defer ts.Cleanup(t)

	public := ts.NewClient("")

	registerBody := map[string]interface{}{
		"username": "nurse.joy",
		"email":    "joy@hdu.test",
		"password": "s3cure-pass",
		"fullName": "Joy Nurse",
		"role":     auth.RoleNurse,
	}
	resp := public.POST(t, "/api/auth/register", registerBody)
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var registered struct {
		User struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"user"`
	}
	testutil.DecodeJSON(t, resp, &registered)
	if registered.User.Status != "pending" {
		t.Fatalf("Expected pending status, got %q", registered.User.Status)
	}
	ts.MockPublisher.AssertEventCount(t, "user.registered", 1)

	// Same username again
	resp = public.POST(t, "/api/auth/register", registerBody)
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)

	// Pending accounts cannot log in
	loginBody := map[string]interface{}{"username": "nurse.joy", "password": "s3cure-pass"}
	resp = public.POST(t, "/api/auth/login", loginBody)
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)

	_, adminToken := ts.ApprovedUser(t, "admin", auth.RoleSuperAdmin)
	admin := ts.NewClient(adminToken)

	var pending struct {
		Count int `json:"count"`
	}
	resp = admin.GET(t, "/api/auth/pending-users")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.DecodeJSON(t, resp, &pending)
	if pending.Count != 1 {
		t.Errorf("Expected 1 pending user, got %d", pending.Count)
	}

	resp = admin.PUT(t, "/api/auth/users/"+registered.User.ID+"/approve", nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	ts.MockPublisher.AssertEventCount(t, "user.status_changed", 1)

	// Login by email now succeeds
	resp = public.POST(t, "/api/auth/login", map[string]interface{}{"email": "JOY@hdu.test", "password": "s3cure-pass"})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var login struct {
		Token string `json:"token"`
	}
	testutil.DecodeJSON(t, resp, &login)
	if login.Token == "" {
		t.Fatal("Expected a token")
	}

	resp = ts.NewClient(login.Token).GET(t, "/api/auth/me")
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	// A Nurse cannot review accounts
	resp = ts.NewClient(login.Token).GET(t, "/api/auth/pending-users")
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)
}

// TestE2E_RejectedAccountLosesAccess checks that an issued token stops
// working once the account is rejected.
func TestE2E_RejectedAccountLosesAccess(t *testing.T) {
	ts := SetupE2ETest(t)
	defer ts.Cleanup(t)

	userID, token := ts.ApprovedUser(t, "dr.house", auth.RoleConsultant)
	client := ts.NewClient(token)

	resp := client.GET(t, "/api/beds")
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	if _, err := ts.DB.Exec(`UPDATE users SET status = 'rejected' WHERE id = $1`, userID); err != nil {
		t.Fatalf("Failed to reject user: %v", err)
	}

	resp = client.GET(t, "/api/beds")
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)
}
