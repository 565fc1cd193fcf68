package testsupport

import (
	"context"
	"testing"

	"vidtranslate/internal/config"
	"vidtranslate/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, inputPath, language string, preserveVoice bool) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), queue.NewJobParams{
		InputPath:      inputPath,
		SourceName:     "clip.mp4",
		TargetLanguage: language,
		PreserveVoice:  preserveVoice,
	})
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}

// MustClaim claims the next queued job and fails the test when none is available.
func MustClaim(t testing.TB, store *queue.Store) *queue.Job {
	t.Helper()

	job, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("store.ClaimNext: %v", err)
	}
	if job == nil {
		t.Fatal("expected a queued job to claim")
	}
	return job
}
