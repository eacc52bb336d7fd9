package testsupport

import (
	"testing"

	"scanbay/internal/config"
	"scanbay/internal/jobs"
)

// MustOpenStore opens a job store for the given test config and registers
// cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
