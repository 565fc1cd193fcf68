package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vidtranslate/internal/config"
)

// ConfigOption adjusts the config NewConfig returns.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns a config whose directories all live under one temp dir,
// with fake provider keys, a fixed signing secret, an ephemeral API port and
// one-second workflow intervals.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.DeliveryDir = filepath.Join(base, "delivery")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Translation.APIKey = "test-translation"
	cfg.Voice.APIKey = "test-voice"
	cfg.Delivery.SigningSecret = "test-signing-secret"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithWorkers sets the workflow worker count.
func WithWorkers(n int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Workflow.Workers = n
	}
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg, ffprobe
// and uvx by default) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"ffmpeg", "ffprobe", "uvx"}
	}
	return func(t testing.TB, base string, _ *config.Config) {
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp directory backing a config from NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
