package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkDir     string `toml:"work_dir"`
	DeliveryDir string `toml:"delivery_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Workflow contains configuration for the job scheduler.
type Workflow struct {
	Workers                 int  `toml:"workers"`
	QueuePollInterval       int  `toml:"queue_poll_interval"`
	ErrorRetryInterval      int  `toml:"error_retry_interval"`
	HeartbeatInterval       int  `toml:"heartbeat_interval"`
	DeleteSource            bool `toml:"delete_source"`
	RetrievedRetentionHours int  `toml:"retrieved_retention_hours"`
}

// Stages contains the hard timeout, in seconds, for each external capability call.
type Stages struct {
	ProbeTimeout      int `toml:"probe_timeout"`
	ExtractTimeout    int `toml:"extract_timeout"`
	TranscribeTimeout int `toml:"transcribe_timeout"`
	TranslateTimeout  int `toml:"translate_timeout"`
	CloneTimeout      int `toml:"clone_timeout"`
	SynthesizeTimeout int `toml:"synthesize_timeout"`
	MuxTimeout        int `toml:"mux_timeout"`
}

// Transcription contains WhisperX settings.
type Transcription struct {
	WhisperXModel       string `toml:"whisperx_model"`
	WhisperXCUDAEnabled bool   `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod   string `toml:"whisperx_vad_method"`
	WhisperXHuggingFace string `toml:"whisperx_hf_token"`
	SourceLanguage      string `toml:"source_language"`
}

// Translation contains the chat-completions endpoint used for text translation.
type Translation struct {
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	Model              string  `toml:"model"`
	Referer            string  `toml:"referer"`
	Title              string  `toml:"title"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	IdenticalThreshold float64 `toml:"identical_threshold"`
}

// Voice contains voice cloning and speech synthesis settings.
type Voice struct {
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	Model              string `toml:"model"`
	DefaultVoiceID     string `toml:"default_voice_id"`
	CloneFailurePolicy string `toml:"clone_failure_policy"`
	DeleteClonedVoices bool   `toml:"delete_cloned_voices"`
	MaxChunkChars      int    `toml:"max_chunk_chars"`
	MinOutputBytes     int    `toml:"min_output_bytes"`
}

// Delivery contains settings for handing finished videos to clients.
type Delivery struct {
	SigningSecret       string `toml:"signing_secret"`
	LinkTTLMinutes      int    `toml:"link_ttl_minutes"`
	PublicBaseURL       string `toml:"public_base_url"`
	DeleteAfterDownload bool   `toml:"delete_after_download"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobSucceeded   bool   `toml:"job_succeeded"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for vidtranslate.
//
// Configuration sections by subsystem:
//   - Paths: work, delivery, state and log directories plus the API bind address
//   - Workflow: worker count, polling intervals and retention
//   - Stages: per-capability timeouts
//   - Transcription: WhisperX model settings
//   - Translation: chat-completions endpoint for text translation
//   - Voice: voice cloning and speech synthesis provider
//   - Delivery: signed download links
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workflow      Workflow      `toml:"workflow"`
	Stages        Stages        `toml:"stages"`
	Transcription Transcription `toml:"transcription"`
	Translation   Translation   `toml:"translation"`
	Voice         Voice         `toml:"voice"`
	Delivery      Delivery      `toml:"delivery"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("vidtranslate.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.DeliveryDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite job store location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "vidtranslate.lock")
}

// PIDPath returns the daemon pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "vidtranslate.pid")
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// WhisperXBinary returns the launcher used to run WhisperX.
func (c *Config) WhisperXBinary() string {
	return "uvx"
}

// DownloadBaseURL returns the URL prefix for signed download links.
func (c *Config) DownloadBaseURL() string {
	if base := strings.TrimRight(strings.TrimSpace(c.Delivery.PublicBaseURL), "/"); base != "" {
		return base
	}
	return "http://" + c.Paths.APIBind
}

// LinkTTL returns the lifetime of a signed download link.
func (c *Config) LinkTTL() time.Duration {
	return time.Duration(c.Delivery.LinkTTLMinutes) * time.Minute
}

// StageTimeouts converts the configured stage timeouts into durations.
func (c *Config) StageTimeouts() StageTimeouts {
	return StageTimeouts{
		Probe:      seconds(c.Stages.ProbeTimeout),
		Extract:    seconds(c.Stages.ExtractTimeout),
		Transcribe: seconds(c.Stages.TranscribeTimeout),
		Translate:  seconds(c.Stages.TranslateTimeout),
		Clone:      seconds(c.Stages.CloneTimeout),
		Synthesize: seconds(c.Stages.SynthesizeTimeout),
		Mux:        seconds(c.Stages.MuxTimeout),
	}
}

// StageTimeouts holds per-capability deadlines.
type StageTimeouts struct {
	Probe      time.Duration
	Extract    time.Duration
	Transcribe time.Duration
	Translate  time.Duration
	Clone      time.Duration
	Synthesize time.Duration
	Mux        time.Duration
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
