package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vidtranslate/internal/queue"
	"vidtranslate/internal/testsupport"
)

func TestNewJobStartsQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "/videos/clip.mp4", "es", true)
	if job.ID == "" {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", job.Status)
	}
	if !job.PreserveVoice || job.TargetLanguage != "es" {
		t.Fatalf("unexpected job fields: %#v", job)
	}
	if job.ProgressPercent != 0 || job.Result != nil || job.ErrorMessage != "" {
		t.Fatalf("expected empty progress and outcome, got %#v", job)
	}
}

func TestGetByIDUnknownReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %#v", job)
	}
}

func TestClaimNextIsFIFOAndExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	second := testsupport.NewJob(t, store, "/videos/b.mp4", "fr", false)

	var (
		mu      sync.Mutex
		claimed []string
		wg      sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.ClaimNext(ctx)
			if err != nil {
				t.Errorf("ClaimNext failed: %v", err)
				return
			}
			if job == nil {
				return
			}
			mu.Lock()
			claimed = append(claimed, job.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(claimed) != 2 {
		t.Fatalf("expected exactly two claims, got %v", claimed)
	}
	seen := map[string]bool{}
	for _, id := range claimed {
		if seen[id] {
			t.Fatalf("job %s claimed twice", id)
		}
		seen[id] = true
	}
	if !seen[first.ID] || !seen[second.ID] {
		t.Fatalf("unexpected claims %v", claimed)
	}

	fetched, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusRunning || fetched.StartedAt == nil {
		t.Fatalf("expected running job with start time, got %#v", fetched)
	}
}

func TestClaimNextEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job, err := store.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil job, got %#v", job)
	}
}

func TestUpdateProgressNeverDecreases(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	job := testsupport.MustClaim(t, store)

	if err := store.UpdateProgress(ctx, job.ID, queue.StageTranscribing, 40, "Transcribed"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, queue.StageTranslating, 20, "Translating"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.ProgressPercent != 40 {
		t.Fatalf("expected progress to stay at 40, got %d", fetched.ProgressPercent)
	}
	if fetched.CurrentStage != queue.StageTranslating || fetched.ProgressMessage != "Translating" {
		t.Fatalf("expected stage and message to update, got %#v", fetched)
	}
}

func TestTerminalWritesHappenOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	job := testsupport.MustClaim(t, store)

	if err := store.AppendStageResult(ctx, job.ID, queue.StageResult{Stage: queue.StageExtracting, Status: queue.StageError, Error: "no audio"}); err != nil {
		t.Fatalf("AppendStageResult failed: %v", err)
	}
	if err := store.Fail(ctx, job.ID, queue.StageExtracting, "extracting: no audio stream"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	if err := store.Complete(ctx, job.ID, queue.FinalResult{VideoPath: "/x.mp4"}); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning on second terminal write, got %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, queue.StageMuxing, 90, "late"); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for late progress, got %v", err)
	}
	if err := store.AppendStageResult(ctx, job.ID, queue.StageResult{Stage: queue.StageTranscribing, Status: queue.StageSuccess}); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for late stage result, got %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusFailed || fetched.Result != nil {
		t.Fatalf("expected failed job without result, got %#v", fetched)
	}
	if fetched.FailedStage != queue.StageExtracting || fetched.ErrorMessage == "" {
		t.Fatalf("expected failure details, got %#v", fetched)
	}
	if len(fetched.StageResults) != 1 {
		t.Fatalf("expected single stage result, got %#v", fetched.StageResults)
	}
}

func TestCompleteStoresResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	job := testsupport.MustClaim(t, store)

	for _, stage := range []queue.Stage{queue.StageExtracting, queue.StageTranscribing} {
		if err := store.AppendStageResult(ctx, job.ID, queue.StageResult{Stage: stage, Status: queue.StageSuccess, DurationMs: 5}); err != nil {
			t.Fatalf("AppendStageResult(%s) failed: %v", stage, err)
		}
	}
	if err := store.AppendStageResult(ctx, job.ID, queue.StageResult{Stage: queue.StageExtracting, Status: queue.StageSuccess}); err == nil {
		t.Fatal("expected duplicate stage result to be rejected")
	}

	result := queue.FinalResult{VideoPath: "/delivery/a_translated.mp4", FileName: "a_translated.mp4", Translation: "hola"}
	if err := store.Complete(ctx, job.ID, result); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusSucceeded || fetched.ProgressPercent != 100 {
		t.Fatalf("expected succeeded at 100%%, got %#v", fetched)
	}
	if fetched.Result == nil || fetched.Result.FileName != "a_translated.mp4" {
		t.Fatalf("unexpected result %#v", fetched.Result)
	}
	if fetched.ErrorMessage != "" || fetched.CompletedAt == nil {
		t.Fatalf("expected completed job without error, got %#v", fetched)
	}
	if len(fetched.StageResults) != 2 || fetched.StageResults[0].Stage != queue.StageExtracting {
		t.Fatalf("expected ordered stage results, got %#v", fetched.StageResults)
	}
}

func TestFailRunningInterruptsInFlightJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	queued := testsupport.NewJob(t, store, "/videos/b.mp4", "es", false)
	running := testsupport.MustClaim(t, store)
	if err := store.UpdateProgress(ctx, running.ID, queue.StageTranscribing, 20, "Transcribing"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	ids, err := store.FailRunning(ctx, queue.DaemonStopReason)
	if err != nil {
		t.Fatalf("FailRunning failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != running.ID {
		t.Fatalf("expected running job to be failed, got %v", ids)
	}

	fetched, _ := store.GetByID(ctx, running.ID)
	if fetched.Status != queue.StatusFailed || fetched.FailedStage != queue.StageTranscribing {
		t.Fatalf("unexpected interrupted job %#v", fetched)
	}
	untouched, _ := store.GetByID(ctx, queued.ID)
	if untouched.Status != queue.StatusQueued {
		t.Fatalf("expected queued job untouched, got %s", untouched.Status)
	}
}

func TestRetrievedJobsPurge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	job := testsupport.MustClaim(t, store)
	if err := store.Fail(ctx, job.ID, queue.StageExtracting, "boom"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	if ids, err := store.PurgeRetrieved(ctx, time.Now().Add(time.Hour)); err != nil || len(ids) != 0 {
		t.Fatalf("expected nothing purged before retrieval, got %v %v", ids, err)
	}
	if err := store.MarkRetrieved(ctx, job.ID); err != nil {
		t.Fatalf("MarkRetrieved failed: %v", err)
	}
	ids, err := store.PurgeRetrieved(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeRetrieved failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != job.ID {
		t.Fatalf("expected job purged, got %v", ids)
	}
	if fetched, _ := store.GetByID(ctx, job.ID); fetched != nil {
		t.Fatalf("expected job deleted, got %#v", fetched)
	}
}

func TestListFiltersByStatusAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewJob(t, store, "/videos/a.mp4", "es", false)
	testsupport.NewJob(t, store, "/videos/b.mp4", "es", false)
	testsupport.MustClaim(t, store)

	queued, err := store.List(ctx, queue.StatusQueued)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(queued) != 1 || queued[0].InputPath != "/videos/b.mp4" {
		t.Fatalf("unexpected queued list %#v", queued)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 || all[0].InputPath != "/videos/a.mp4" {
		t.Fatalf("expected creation order, got %#v", all)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Queued != 1 || health.Running != 1 {
		t.Fatalf("unexpected health %#v", health)
	}

	dbHealth, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !dbHealth.DatabaseReadable || !dbHealth.IntegrityCheck || dbHealth.TotalJobs != 2 {
		t.Fatalf("unexpected database health %#v", dbHealth)
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to queue.Status
		want     bool
	}{
		{queue.StatusQueued, queue.StatusRunning, true},
		{queue.StatusRunning, queue.StatusSucceeded, true},
		{queue.StatusRunning, queue.StatusFailed, true},
		{queue.StatusQueued, queue.StatusSucceeded, false},
		{queue.StatusSucceeded, queue.StatusFailed, false},
		{queue.StatusFailed, queue.StatusRunning, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if status, ok := queue.ParseStatus(" Running "); !ok || status != queue.StatusRunning {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := queue.ParseStatus("pending"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
