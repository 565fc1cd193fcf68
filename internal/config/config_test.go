package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vidtranslate/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "env-translation")
	t.Setenv("TRANSLATION_API_KEY", "")
	t.Setenv("ELEVENLABS_API_KEY", "env-voice")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "vidtranslate", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Translation.APIKey != "env-translation" {
		t.Fatalf("expected translation key from env, got %q", cfg.Translation.APIKey)
	}
	if cfg.Voice.APIKey != "env-voice" {
		t.Fatalf("expected voice key from env, got %q", cfg.Voice.APIKey)
	}
	if cfg.Voice.CloneFailurePolicy != config.ClonePolicySoft {
		t.Fatalf("expected soft clone policy by default, got %q", cfg.Voice.CloneFailurePolicy)
	}
	if !cfg.Workflow.DeleteSource {
		t.Fatal("expected delete_source enabled by default")
	}
	if got := cfg.StageTimeouts().Extract; got != 30*time.Second {
		t.Fatalf("unexpected extract timeout: %s", got)
	}
	if cfg.QueueDBPath() != filepath.Join(cfg.Paths.StateDir, "jobs.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDBPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.DeliveryDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "vidtranslate.toml")

	type payload struct {
		Paths struct {
			WorkDir string `toml:"work_dir"`
		} `toml:"paths"`
		Workflow struct {
			Workers int `toml:"workers"`
		} `toml:"workflow"`
		Voice struct {
			APIKey             string `toml:"api_key"`
			CloneFailurePolicy string `toml:"clone_failure_policy"`
		} `toml:"voice"`
	}
	custom := payload{}
	custom.Paths.WorkDir = filepath.Join(tempDir, "work")
	custom.Workflow.Workers = 4
	custom.Voice.APIKey = "file-voice"
	custom.Voice.CloneFailurePolicy = " Quota_Only "
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}
	t.Setenv("ELEVENLABS_API_KEY", "env-voice")

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempDir, "work") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Workflow.Workers)
	}
	if cfg.Voice.APIKey != "file-voice" {
		t.Fatalf("expected file key to win over env, got %q", cfg.Voice.APIKey)
	}
	if cfg.Voice.CloneFailurePolicy != config.ClonePolicyQuotaOnly {
		t.Fatalf("expected normalized clone policy, got %q", cfg.Voice.CloneFailurePolicy)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "clone_failure_policy") {
		t.Fatalf("sample config missing voice section: %s", contents)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if !strings.Contains(cfg.Paths.WorkDir, "vidtranslate") {
		t.Fatalf("expected work dir to contain vidtranslate, got %q", cfg.Paths.WorkDir)
	}
	if cfg.Voice.Model != "eleven_multilingual_v1" {
		t.Fatalf("unexpected voice model: %q", cfg.Voice.Model)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero workers", func(c *config.Config) { c.Workflow.Workers = 0 }},
		{"zero heartbeat", func(c *config.Config) { c.Workflow.HeartbeatInterval = 0 }},
		{"negative retention", func(c *config.Config) { c.Workflow.RetrievedRetentionHours = -1 }},
		{"zero extract timeout", func(c *config.Config) { c.Stages.ExtractTimeout = 0 }},
		{"threshold above one", func(c *config.Config) { c.Translation.IdenticalThreshold = 1.5 }},
		{"unknown clone policy", func(c *config.Config) { c.Voice.CloneFailurePolicy = "never" }},
		{"tiny chunk", func(c *config.Config) { c.Voice.MaxChunkChars = 10 }},
		{"zero link ttl", func(c *config.Config) { c.Delivery.LinkTTLMinutes = 0 }},
		{"bad public url", func(c *config.Config) { c.Delivery.PublicBaseURL = "not a url" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestDownloadBaseURL(t *testing.T) {
	cfg := config.Default()
	if got := cfg.DownloadBaseURL(); got != "http://127.0.0.1:7490" {
		t.Fatalf("unexpected default base url %q", got)
	}
	cfg.Delivery.PublicBaseURL = "https://videos.example.com/"
	if got := cfg.DownloadBaseURL(); got != "https://videos.example.com" {
		t.Fatalf("unexpected public base url %q", got)
	}
}
