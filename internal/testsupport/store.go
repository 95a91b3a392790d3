package testsupport

import (
	"context"
	"testing"

	"snsnotify/internal/build"
	"snsnotify/internal/config"
	"snsnotify/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// AttachJob stores a job attachment for tests.
func AttachJob(t testing.TB, st *store.Store, job build.JobConfig) {
	t.Helper()

	if err := st.PutJob(context.Background(), job); err != nil {
		t.Fatalf("store.PutJob: %v", err)
	}
}

// CompleteBuild records a completed build with the given result.
func CompleteBuild(t testing.TB, st *store.Store, job string, number int64, result build.Result) {
	t.Helper()

	ev := build.Event{Job: job, Number: number, Phase: build.PhaseCompleted, Result: result}
	if err := st.RecordCompleted(context.Background(), ev); err != nil {
		t.Fatalf("store.RecordCompleted: %v", err)
	}
}
