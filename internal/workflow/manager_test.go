package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidtranslate/internal/config"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/services"
	"vidtranslate/internal/stage"
	"vidtranslate/internal/staging"
	"vidtranslate/internal/testsupport"
	"vidtranslate/internal/workflow"
)

// completingRunner drives each job straight to success through the store.
type completingRunner struct {
	store *queue.Store

	mu    sync.Mutex
	runs  map[string]int
	block chan struct{}
}

func newCompletingRunner(store *queue.Store) *completingRunner {
	return &completingRunner{store: store, runs: make(map[string]int)}
}

func (r *completingRunner) Run(ctx context.Context, job *queue.Job) error {
	r.mu.Lock()
	r.runs[job.ID]++
	block := r.block
	r.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return r.store.Fail(context.WithoutCancel(ctx), job.ID, queue.StageExtracting, queue.DaemonStopReason)
		}
	}
	if err := r.store.UpdateProgress(ctx, job.ID, queue.StageExtracting, 10, "Extracting audio"); err != nil {
		return err
	}
	return r.store.Complete(ctx, job.ID, queue.FinalResult{VideoPath: "/out/" + job.ID + ".mp4", FileName: job.ID + ".mp4"})
}

func (r *completingRunner) runCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id]
}

type countingHealth struct {
	mu    sync.Mutex
	calls int
}

func (h *countingHealth) HealthChecks(context.Context) []stage.Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return []stage.Health{stage.Healthy("translation"), stage.Unhealthy("voice", "API key missing")}
}

type recordingOutbox struct {
	mu        sync.Mutex
	discarded []string
}

func (o *recordingOutbox) Discard(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discarded = append(o.discarded, jobID)
}

func writeVideo(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "incoming", name)
	testsupport.WriteFile(t, path, 256)
	return path
}

func waitForStatus(t *testing.T, store *queue.Store, id string, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach %s", id, want)
	return nil
}

func TestSubmitValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, newCompletingRunner(store), nil)
	video := writeVideo(t, cfg, "talk.MOV")
	notes := filepath.Join(testsupport.BaseDir(cfg), "notes.txt")
	testsupport.WriteFile(t, notes, 10)

	tests := []struct {
		name string
		req  workflow.SubmitRequest
	}{
		{"missing path", workflow.SubmitRequest{TargetLanguage: "es"}},
		{"missing file", workflow.SubmitRequest{SourcePath: filepath.Join(t.TempDir(), "gone.mp4"), TargetLanguage: "es"}},
		{"unsupported extension", workflow.SubmitRequest{SourcePath: notes, TargetLanguage: "es"}},
		{"missing language", workflow.SubmitRequest{SourcePath: video}},
		{"unknown language", workflow.SubmitRequest{SourcePath: video, TargetLanguage: "klingonese"}},
		{"undetermined language", workflow.SubmitRequest{SourcePath: video, TargetLanguage: "und"}},
		{"undetermined language with region", workflow.SubmitRequest{SourcePath: video, TargetLanguage: "und-JP"}},
		{"multiple languages", workflow.SubmitRequest{SourcePath: video, TargetLanguage: "mul"}},
		{"no linguistic content", workflow.SubmitRequest{SourcePath: video, TargetLanguage: "zxx"}},
		{"private use language", workflow.SubmitRequest{SourcePath: video, TargetLanguage: "qaa"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mgr.Submit(context.Background(), tc.req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	jobs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("rejected submissions must not be persisted, got %d jobs", len(jobs))
	}
}

func TestSubmitPersistsQueuedJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, newCompletingRunner(store), nil)
	video := writeVideo(t, cfg, "talk.mp4")

	job, err := mgr.Submit(context.Background(), workflow.SubmitRequest{
		SourcePath:     video,
		TargetLanguage: "Spanish",
		PreserveVoice:  true,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != queue.StatusQueued || job.TargetLanguage != "es" || !job.PreserveVoice {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.InputPath != video || job.SourceName != "talk.mp4" {
		t.Fatalf("unexpected paths %q %q", job.InputPath, job.SourceName)
	}
}

func TestGetStatusUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, newCompletingRunner(store), nil)

	if _, err := mgr.GetStatus(context.Background(), "does-not-exist"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkersProcessSubmittedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(3))
	store := testsupport.MustOpenStore(t, cfg)
	runner := newCompletingRunner(store)
	mgr := workflow.NewManager(cfg, store, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()
	if err := mgr.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	var ids []string
	for i := 0; i < 6; i++ {
		job, err := mgr.Submit(ctx, workflow.SubmitRequest{
			SourcePath:     writeVideo(t, cfg, filepath.Base(t.TempDir())+".mp4"),
			TargetLanguage: "fr",
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, job.ID)
	}

	for _, id := range ids {
		waitForStatus(t, store, id, queue.StatusSucceeded)
		if n := runner.runCount(id); n != 1 {
			t.Fatalf("job %s ran %d times", id, n)
		}
	}

	job, err := mgr.GetStatus(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if job.Result == nil || job.ProgressPercent != 100 {
		t.Fatalf("expected completed result, got %+v", job)
	}
	again, err := store.GetByID(ctx, ids[0])
	if err != nil || again.RetrievedAt == nil {
		t.Fatalf("expected retrieval to be recorded, err=%v", err)
	}

	summary := mgr.Status(ctx)
	if !summary.Running || summary.Workers != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.QueueStats[queue.StatusSucceeded] != len(ids) {
		t.Fatalf("unexpected stats %v", summary.QueueStats)
	}
}

func TestStopInterruptsRunningJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := newCompletingRunner(store)
	runner.block = make(chan struct{})
	mgr := workflow.NewManager(cfg, store, runner, nil)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job, err := mgr.Submit(context.Background(), workflow.SubmitRequest{
		SourcePath:     writeVideo(t, cfg, "long.mkv"),
		TargetLanguage: "de",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, store, job.ID, queue.StatusRunning)
	mgr.Stop()

	final := waitForStatus(t, store, job.ID, queue.StatusFailed)
	if final.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("unexpected error message %q", final.ErrorMessage)
	}
}

func TestStartRecoversInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	stale := testsupport.MustClaim(t, store)
	staleDir := staging.JobDir(cfg.Paths.WorkDir, stale.ID)
	testsupport.WriteFile(t, filepath.Join(staleDir, "audio.wav"), 32)

	mgr := workflow.NewManager(cfg, store, newCompletingRunner(store), nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer mgr.Stop()

	job, err := store.GetByID(context.Background(), stale.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != queue.StatusFailed || job.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("expected interrupted failure, got %s %q", job.Status, job.ErrorMessage)
	}
	if _, err := os.Stat(staleDir); !os.IsNotExist(err) {
		t.Fatalf("expected orphaned work directory removed, stat err=%v", err)
	}
}

func TestRemoveDiscardsDelivery(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	outbox := &recordingOutbox{}
	mgr := workflow.NewManager(cfg, store, newCompletingRunner(store), nil, workflow.WithOutbox(outbox))
	ctx := context.Background()

	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	job := testsupport.MustClaim(t, store)
	if err := mgr.Remove(ctx, job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected running job removal to be rejected, got %v", err)
	}
	if err := store.Complete(ctx, job.ID, queue.FinalResult{FileName: "a.mp4"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := mgr.Remove(ctx, job.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(outbox.discarded) != 1 || outbox.discarded[0] != job.ID {
		t.Fatalf("expected delivery discarded, got %v", outbox.discarded)
	}
	if _, err := mgr.GetStatus(ctx, job.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected removed job to be gone, got %v", err)
	}
}

func TestStatusCachesHealthChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	health := &countingHealth{}
	mgr := workflow.NewManager(cfg, store, newCompletingRunner(store), nil, workflow.WithHealthSource(health, time.Hour))

	first := mgr.Status(context.Background())
	second := mgr.Status(context.Background())
	if health.calls != 1 {
		t.Fatalf("expected one health probe, got %d", health.calls)
	}
	if len(first.Health) != 2 || len(second.Health) != 2 || second.Health[1].Ready {
		t.Fatalf("unexpected health %+v", second.Health)
	}
}

func TestListRejectsUnknownStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, newCompletingRunner(store), nil)

	if _, err := mgr.List(context.Background(), "paused"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	jobs, err := mgr.List(context.Background(), "Queued")
	if err != nil || len(jobs) != 1 {
		t.Fatalf("expected one queued job, got %d (%v)", len(jobs), err)
	}
}
