package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/hdu-care/hdu-service/internal/db"
	_ "github.com/lib/pq"
)

// DefaultTestDSN points at the local test database.
const DefaultTestDSN = "host=localhost port=5432 user=hdu password=hdu dbname=hdu_test sslmode=disable"

// SetupTestDB connects to the test database named by TEST_DATABASE_URL and
// applies pending migrations. The test is skipped when no database answers.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = DefaultTestDSN
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Skipf("Test database not available: %v", err)
	}

	if _, err := db.NewMigrator(conn).Up(context.Background()); err != nil {
		conn.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// CleanupTestDB empties every domain table and re-creates an empty bed pool
// of the given size.
func CleanupTestDB(t *testing.T, conn *sql.DB, beds int) {
	t.Helper()

	_, err := conn.Exec(`
		TRUNCATE audit_logs, patient_documents, critical_factors, emergency_contacts,
		         medical_records, admissions, beds, patients, patient_number_sequences,
		         vital_signs_config, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	for i := 1; i <= beds; i++ {
		if _, err := conn.Exec(`INSERT INTO beds (bed_number) VALUES ($1)`, BedNumber(i)); err != nil {
			t.Fatalf("Failed to seed bed %d: %v", i, err)
		}
	}
}

// BedNumber formats the seeded bed label.
func BedNumber(i int) string {
	return fmt.Sprintf("HDU-%02d", i)
}
