package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/outbox/internal/testutil"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, _ := createTestStoreWithClock(t)
	return s
}

// createTestStoreWithClock creates a store whose timestamps come from a fake
// clock and whose idempotency keys are sequential.
func createTestStoreWithClock(t *testing.T) (*Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Time{})
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithNow(clock.Now),
		WithKeyGenerator(testutil.NewSequentialKeys("key")),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}
