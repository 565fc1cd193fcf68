package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidtranslate/internal/config"
	"vidtranslate/internal/daemon"
	"vidtranslate/internal/delivery"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/testsupport"
	"vidtranslate/internal/workflow"
)

// fakeRunner finishes every job immediately, or fails it when fail is set.
type fakeRunner struct {
	store  *queue.Store
	outbox *delivery.Outbox
	dir    string
	fail   atomic.Bool
}

func (r *fakeRunner) Run(ctx context.Context, job *queue.Job) error {
	if r.fail.Load() {
		return r.store.Fail(ctx, job.ID, queue.StageTranslating, "provider rejected request")
	}
	src := filepath.Join(r.dir, job.ID+".mp4")
	if err := os.WriteFile(src, []byte("translated"), 0o644); err != nil {
		return err
	}
	dest, err := r.outbox.Accept(job.ID, src, "clip_translated.mp4")
	if err != nil {
		return err
	}
	return r.store.Complete(ctx, job.ID, queue.FinalResult{
		VideoPath:      dest,
		FileName:       "clip_translated.mp4",
		Transcription:  "hello there",
		Translation:    "hola",
		SourceLanguage: "en",
		SegmentCount:   2,
	})
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	runner     *fakeRunner
	configPath string
	apiURL     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	configPath := filepath.Join(home, ".config", "vidtranslate", "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	outbox := delivery.New(delivery.Options{
		Dir:                 cfg.Paths.DeliveryDir,
		Secret:              cfg.Delivery.SigningSecret,
		BaseURL:             "http://downloads.test",
		DeleteAfterDownload: true,
	})
	runner := &fakeRunner{store: store, outbox: outbox, dir: t.TempDir()}
	mgr := workflow.NewManager(cfg, store, runner, nil, workflow.WithOutbox(outbox))

	d, err := daemon.New(cfg, store, nil, mgr, outbox)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		runner:     runner,
		configPath: configPath,
		apiURL:     "http://" + d.APIAddr(),
	}
}

func runCLI(t *testing.T, args []string, apiURL, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiURL != "" {
		flags = append(flags, "--api", apiURL)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeSourceVideo(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "input", "clip.mp4")
	testsupport.WriteFile(t, path, 1024)
	return path
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
