package testutil

import (
	"testing"

	"github.com/HerbHall/faceanalyzer/internal/store"
)

// NewStore opens a private in-memory store that is closed when the test ends.
func NewStore(t testing.TB, opts ...store.Option) *store.SQLiteStore {
	t.Helper()
	s, err := store.New(":memory:", opts...)
	if err != nil {
		t.Fatalf("testutil.NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
