package testutil

import (
	"testing"

	"github.com/nhle/mailbot/internal/store"
)

// NewTestJournal creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestJournal(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test journal: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test journal: %v", err)
		}
	})

	return s
}
