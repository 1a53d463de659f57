package testutil

import (
	"context"
	"testing"

	"pixsync/internal/remote"
)

// NewTestRemote creates an in-memory remote store with a session already
// established, so tests exercise operations rather than authentication.
func NewTestRemote(t *testing.T) *remote.MemoryStore {
	t.Helper()

	store := remote.NewMemoryStore()
	if err := store.Login(context.Background(), "test-user", "test-password"); err != nil {
		t.Fatalf("failed to log in to memory store: %v", err)
	}
	return store
}
