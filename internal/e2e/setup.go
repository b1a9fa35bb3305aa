//go:build integration

package e2e

import (
	"database/sql"
	"net/http/httptest"
	"testing"

	"github.com/hdu-care/hdu-service/internal/app"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/document"
	httpserver "github.com/hdu-care/hdu-service/internal/http"
	"github.com/hdu-care/hdu-service/internal/testutil"
)

// TestServer represents a complete E2E test environment
type TestServer struct {
	Server        *httptest.Server
	DB            *sql.DB
	MockPublisher *testutil.MockPublisher
	Issuer        *auth.Issuer
	Services      *app.Services
}

// SetupE2ETest creates a complete test environment for E2E testing
// This includes:
// - Real PostgreSQL database with a fresh bed pool and default vital ranges
// - Real HTTP server with all routes
// - In-memory RabbitMQ publisher
// - Local document storage in a temporary directory
func SetupE2ETest(t *testing.T) *TestServer {
	t.Helper()

	// Setup real database
	db := testutil.SetupTestDB(t)
	testutil.CleanupTestDB(t, db, 3)

	mockPublisher := testutil.NewMockPublisher()

	perms, err := auth.LoadPermissions("../../permissions.yml")
	if err != nil {
		t.Fatalf("Failed to load permissions: %v", err)
	}

	verifier, issuer := testutil.CreateTestVerifier(t)

	uploadDir := t.TempDir()
	storage, err := document.NewLocalStorage(uploadDir)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	services := app.NewServices(db, storage, issuer, mockPublisher, nil)
	if _, err := services.Vitals.SeedDefaults(t.Context()); err != nil {
		t.Fatalf("Failed to seed vital sign configuration: %v", err)
	}

	router := httpserver.SetupRouter(services.Handlers(), httpserver.Options{
		Verifier:    verifier,
		Permissions: perms,
		Status:      services.Users,
		UploadDir:   uploadDir,
	})

	server := httptest.NewServer(router)

	return &TestServer{
		Server:        server,
		DB:            db,
		MockPublisher: mockPublisher,
		Issuer:        issuer,
		Services:      services,
	}
}

// Cleanup cleans up all test resources
func (ts *TestServer) Cleanup(t *testing.T) {
	t.Helper()

	ts.Server.Close()
	testutil.CleanupTestDB(t, ts.DB, 0)
}

// ApprovedUser inserts an approved account with role and returns a token
// for it. The auth middleware re-checks the account status, so tokens for
// users that do not exist are rejected.
func (ts *TestServer) ApprovedUser(t *testing.T, username, role string) (string, string) {
	t.Helper()

	var id string
	err := ts.DB.QueryRow(`
		INSERT INTO users (id, username, email, password_hash, full_name, role, status, created_at)
		VALUES (gen_random_uuid(), $1, $1 || '@hdu.test', 'x', $1, $2, 'approved', NOW())
		RETURNING id
	`, username, role).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert user %s: %v", username, err)
	}
	return id, testutil.GenerateTestJWT(t, ts.Issuer, id, role)
}

// NewClient creates a new HTTP test client for this server with the given token
func (ts *TestServer) NewClient(token string) *testutil.HTTPTestClient {
	return testutil.NewHTTPTestClient(ts.Server.URL, token)
}
