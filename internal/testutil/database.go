package testutil

import (
	"testing"

	"matchup-go/internal/database"
)

// NewTestDatabase creates an in-memory SQLite registry with migrations applied.
// The registry is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteRegistry {
	t.Helper()

	r, err := database.NewSQLiteRegistry(":memory:")
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
	})
	return r
}
