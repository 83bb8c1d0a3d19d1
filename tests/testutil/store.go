package testutil

import (
	"testing"
	"time"

	"github.com/nhle/todosync/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T, opts ...store.Option) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", opts...)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// FixedClock returns a clock that always reports the same instant, so every
// timestamp a store issues is driven by its monotonic counter alone.
func FixedClock(ms int64) func() time.Time {
	at := time.UnixMilli(ms)
	return func() time.Time { return at }
}
