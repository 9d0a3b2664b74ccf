package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/flyingwithjoel/fwj-api/db"
)

// SetupTestDB connects to TEST_PG_DSN and prepares the kv schema.
// It skips the test if TEST_PG_DSN environment variable is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := db.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(context.Background(), database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() {
		_, _ = database.Exec(`DELETE FROM kv WHERE key LIKE 'test:%'`)
		database.Close()
	})
	return database
}
