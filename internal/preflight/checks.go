package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"vidtranslate/internal/config"
	"vidtranslate/internal/deps"
	"vidtranslate/internal/services/llm"
	"vidtranslate/internal/services/voice"
)

const remoteCheckTimeout = 30 * time.Second

// CheckTranslation verifies that the translation API is reachable and the key
// is valid. It makes a single attempt without retries.
func CheckTranslation(ctx context.Context, cfg *config.Config) Result {
	const name = "Translation API"
	if strings.TrimSpace(cfg.Translation.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.Translation.APIKey,
		BaseURL: cfg.Translation.BaseURL,
		Model:   cfg.Translation.Model,
		Referer: cfg.Translation.Referer,
		Title:   cfg.Translation.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API reachable (%s)", client.Model())}
}

// CheckVoice verifies that the voice API accepts the configured key.
func CheckVoice(ctx context.Context, cfg *config.Config) Result {
	const name = "Voice API"
	if strings.TrimSpace(cfg.Voice.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()

	client := voice.NewClient(voice.Config{
		APIKey:  cfg.Voice.APIKey,
		BaseURL: cfg.Voice.BaseURL,
		Model:   cfg.Voice.Model,
	})
	if err := client.HealthCheck(checkCtx); err != nil {
		var apiErr *voice.APIError
		if errors.As(err, &apiErr) && voice.IsQuotaError(err) {
			return Result{Name: name, Detail: fmt.Sprintf("quota or auth problem (%d %s)", apiErr.StatusCode, apiErr.Status)}
		}
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSigningSecret reports whether download links can be signed with a
// persistent secret. Without one the daemon signs with a per-process secret
// and links stop working after a restart.
func CheckSigningSecret(cfg *config.Config) Result {
	const name = "Download signing"
	secret := strings.TrimSpace(cfg.Delivery.SigningSecret)
	switch {
	case secret == "":
		return Result{Name: name, Passed: true, Detail: "ephemeral secret (links reset on restart)"}
	case len(secret) < 16:
		return Result{Name: name, Detail: "signing_secret shorter than 16 characters"}
	default:
		return Result{Name: name, Passed: true, Detail: "secret configured"}
	}
}

// CheckSystemDeps evaluates the external binaries the stage adapters run.
// Both the daemon and the CLI check command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction, concatenation and muxing",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for source inspection",
		},
		{
			Name:        "uvx",
			Command:     cfg.WhisperXBinary(),
			Description: "Required for WhisperX-driven transcription",
		},
	})
}

// summarizeRemoteError produces a human-readable summary for API health check failures.
func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
