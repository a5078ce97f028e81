package testsupport

import (
	"context"
	"testing"

	"shelfcast/internal/config"
	"shelfcast/internal/queue"
)

// MustOpenStore opens the history ledger for cfg, records seed into it and
// closes it when the test ends.
func MustOpenStore(t testing.TB, cfg *config.Config, seed ...queue.JobRecord) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open history ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for _, rec := range seed {
		if err := store.Record(context.Background(), rec); err != nil {
			t.Fatalf("seed job %s: %v", rec.JobID, err)
		}
	}
	return store
}
