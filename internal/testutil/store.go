package testutil

import (
	"testing"

	"fwatch-go/internal/database"
	"fwatch-go/internal/fwatch"
)

// NewTestStore creates an in-memory SQLite store with all migrations applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) fwatch.Store {
	t.Helper()

	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
