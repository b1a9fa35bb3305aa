package testutil

import (
	"testing"
	"time"

	"github.com/hdu-care/hdu-service/internal/auth"
)

// TestJWTSecret signs every token issued in tests.
const TestJWTSecret = "test-secret-do-not-use"

// CreateTestVerifier returns a verifier and an issuer sharing the test secret.
func CreateTestVerifier(t *testing.T) (*auth.Verifier, *auth.Issuer) {
	t.Helper()

	cfg, err := auth.NewConfig(TestJWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to build auth config: %v", err)
	}
	return auth.NewVerifier(cfg), auth.NewIssuer(cfg)
}

// GenerateTestJWT creates a valid token for the given user and role.
func GenerateTestJWT(t *testing.T, issuer *auth.Issuer, userID, role string) string {
	t.Helper()

	token, _, err := issuer.Issue(userID, role)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// GenerateSuperAdminToken creates a Super Admin token for testing
func GenerateSuperAdminToken(t *testing.T, issuer *auth.Issuer, userID string) string {
	t.Helper()
	return GenerateTestJWT(t, issuer, userID, auth.RoleSuperAdmin)
}

// GenerateConsultantToken creates a Consultant token for testing
func GenerateConsultantToken(t *testing.T, issuer *auth.Issuer, userID string) string {
	t.Helper()
	return GenerateTestJWT(t, issuer, userID, auth.RoleConsultant)
}

// GenerateNurseToken creates a Nurse token for testing
func GenerateNurseToken(t *testing.T, issuer *auth.Issuer, userID string) string {
	t.Helper()
	return GenerateTestJWT(t, issuer, userID, auth.RoleNurse)
}
