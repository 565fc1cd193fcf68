package daemon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidtranslate/internal/api"
	"vidtranslate/internal/config"
	"vidtranslate/internal/daemon"
	"vidtranslate/internal/delivery"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/services"
	"vidtranslate/internal/testsupport"
	"vidtranslate/internal/workflow"
)

// deliveringRunner completes every job by placing a small file in the outbox.
type deliveringRunner struct {
	store  *queue.Store
	outbox *delivery.Outbox
	dir    string
}

func (r *deliveringRunner) Run(ctx context.Context, job *queue.Job) error {
	src := filepath.Join(r.dir, job.ID+".mp4")
	if err := os.WriteFile(src, []byte("translated-video"), 0o644); err != nil {
		return err
	}
	dest, err := r.outbox.Accept(job.ID, src, "clip_translated.mp4")
	if err != nil {
		return err
	}
	return r.store.Complete(ctx, job.ID, queue.FinalResult{
		VideoPath:     dest,
		FileName:      "clip_translated.mp4",
		Transcription: "hello",
		Translation:   "hola",
		SegmentCount:  1,
	})
}

type harness struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	client *api.Client
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Paths.APIToken = token
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	outbox := delivery.New(delivery.Options{
		Dir:                 cfg.Paths.DeliveryDir,
		Secret:              cfg.Delivery.SigningSecret,
		DeleteAfterDownload: true,
	})
	runner := &deliveringRunner{store: store, outbox: outbox, dir: t.TempDir()}
	mgr := workflow.NewManager(cfg, store, runner, nil, workflow.WithOutbox(outbox))

	d, err := daemon.New(cfg, store, nil, mgr, outbox)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return &harness{cfg: cfg, daemon: d}
}

func (h *harness) start(t *testing.T, token string) {
	t.Helper()
	if err := h.daemon.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.client = api.NewClient("http://"+h.daemon.APIAddr(), token)
}

func writeVideo(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "input", "clip.mp4")
	testsupport.WriteFile(t, path, 2048)
	return path
}

func waitForSucceeded(t *testing.T, client *api.Client, id string) api.JobReport {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		report, err := client.Job(context.Background(), id)
		if err != nil {
			t.Fatalf("Job: %v", err)
		}
		switch report.Status {
		case "succeeded":
			return report
		case "failed":
			t.Fatalf("job failed: %+v", report.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %s", id)
	return api.JobReport{}
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	h.start(t, "")
	if !h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	if h.daemon.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	h := newHarness(t, "")
	h.start(t, "")

	store, err := queue.Open(h.cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	outbox := delivery.New(delivery.Options{Dir: h.cfg.Paths.DeliveryDir, Secret: "another-signing-secret"})
	mgr := workflow.NewManager(h.cfg, store, &deliveringRunner{store: store, outbox: outbox, dir: t.TempDir()}, nil)
	other, err := daemon.New(h.cfg, store, nil, mgr, outbox)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer other.Close()

	err = other.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestAPIJobLifecycleAndDownload(t *testing.T) {
	h := newHarness(t, "")
	h.start(t, "")
	ctx := context.Background()

	report, err := h.client.Submit(ctx, api.SubmitRequest{
		SourcePath:     writeVideo(t, h.cfg),
		TargetLanguage: "Spanish",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if report.ID == "" || report.TargetLanguage != "es" {
		t.Fatalf("unexpected submit report: %+v", report)
	}

	done := waitForSucceeded(t, h.client, report.ID)
	if done.Percent == nil || *done.Percent != 100 {
		t.Fatalf("expected percent 100, got %+v", done.Percent)
	}
	if done.Result == nil || done.Result.Translation != "hola" || done.Result.Download == nil {
		t.Fatalf("expected result with download link, got %+v", done.Result)
	}

	_, token, ok := strings.Cut(done.Result.Download.URL, "/download/")
	if !ok {
		t.Fatalf("unexpected download url %q", done.Result.Download.URL)
	}
	resp, err := http.Get("http://" + h.daemon.APIAddr() + "/download/" + token)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "translated-video" {
		t.Fatalf("download status=%d body=%q", resp.StatusCode, body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "clip_translated.mp4") {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	if _, err := os.Stat(filepath.Join(h.cfg.Paths.DeliveryDir, report.ID)); !os.IsNotExist(err) {
		t.Fatalf("expected delivered output removed after download, stat err=%v", err)
	}

	again, err := http.Get("http://" + h.daemon.APIAddr() + "/download/" + token)
	if err != nil {
		t.Fatalf("second download: %v", err)
	}
	again.Body.Close()
	if again.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete-after-download, got %d", again.StatusCode)
	}

	jobs, err := h.client.Jobs(ctx, "succeeded")
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != report.ID {
		t.Fatalf("unexpected job list %+v", jobs)
	}

	if err := h.client.Remove(ctx, report.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := h.client.Job(ctx, report.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
}

func TestAPIErrors(t *testing.T) {
	h := newHarness(t, "")
	h.start(t, "")
	ctx := context.Background()

	if _, err := h.client.Job(ctx, "does-not-exist"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err := h.client.Submit(ctx, api.SubmitRequest{SourcePath: "/nope/clip.mp4", TargetLanguage: "es"})
	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest || httpErr.Kind != "validation" {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := h.client.Jobs(ctx, "paused"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}

	resp, err := http.Get("http://" + h.daemon.APIAddr() + "/download/not-a-token")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for forged token, got %d", resp.StatusCode)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	h := newHarness(t, "s3cret")
	h.start(t, "wrong")
	ctx := context.Background()

	_, err := h.client.Status(ctx)
	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}

	authed := api.NewClient("http://"+h.daemon.APIAddr(), "s3cret")
	status, err := authed.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Workflow.Workers < 1 || len(status.Dependencies) == 0 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Workflow.QueueStats["queued"] != 0 {
		t.Fatalf("unexpected queue stats %+v", status.Workflow.QueueStats)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	h := newHarness(t, "")
	h.start(t, "")

	resp, err := h.client.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if resp.Sent || !strings.Contains(resp.Message, "not configured") {
		t.Fatalf("unexpected response %+v", resp)
	}
}
