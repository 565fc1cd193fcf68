package daemonrun

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vidtranslate/internal/config"
	"vidtranslate/internal/daemon"
	"vidtranslate/internal/delivery"
	"vidtranslate/internal/deps"
	"vidtranslate/internal/logging"
	"vidtranslate/internal/notifications"
	"vidtranslate/internal/pipeline"
	"vidtranslate/internal/preflight"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/stage"
	"vidtranslate/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	Development   bool
	SkipPreflight bool
}

// Run starts the vidtranslate daemon and blocks until it receives SIGINT or
// SIGTERM or cmdCtx is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := logging.DaemonLogPath(cfg.Paths.LogDir, runID)
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update vidtranslate.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "vidtranslate-*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)

	if strings.TrimSpace(cfg.Delivery.SigningSecret) == "" {
		secret, err := ephemeralSecret()
		if err != nil {
			return fmt.Errorf("generate signing secret: %w", err)
		}
		cfg.Delivery.SigningSecret = secret
		logging.WarnWithContext(logger, "no delivery signing secret configured; using an ephemeral one", "signing_secret_ephemeral",
			logging.String(logging.FieldErrorHint, "set delivery.signing_secret in the config file"),
			logging.String(logging.FieldImpact, "download links stop working when the daemon restarts"),
		)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	adapters := stage.NewFromConfig(cfg, logger)
	outbox := delivery.New(delivery.Options{
		Dir:                 cfg.Paths.DeliveryDir,
		Secret:              cfg.Delivery.SigningSecret,
		TTL:                 cfg.LinkTTL(),
		BaseURL:             cfg.DownloadBaseURL(),
		DeleteAfterDownload: cfg.Delivery.DeleteAfterDownload,
		Logger:              logger,
	})
	runner := pipeline.NewRunner(pipeline.Options{
		Store:              store,
		Stages:             adapters,
		Outbox:             outbox,
		Notifier:           notifications.NewService(cfg),
		WorkDir:            cfg.Paths.WorkDir,
		DeleteSource:       cfg.Workflow.DeleteSource,
		DeleteClonedVoices: cfg.Voice.DeleteClonedVoices,
		Logger:             logger,
	})
	manager := workflow.NewManager(cfg, store, runner, logger,
		workflow.WithHealthSource(adapters, time.Minute),
		workflow.WithOutbox(outbox),
	)

	if !opts.SkipPreflight {
		if err := manager.RunPreflightChecks(signalCtx, true); err != nil {
			logging.WarnWithContext(logger, "preflight checks reported problems", "preflight_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run `vidtranslate check` for details"),
				logging.String(logging.FieldImpact, "jobs may fail until the problems are fixed"),
			)
		}
	}

	d, err := daemon.New(cfg, store, logger, manager, outbox)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("vidtranslate daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ephemeralSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logging.CurrentLogPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("translation_key_present", strings.TrimSpace(cfg.Translation.APIKey) != ""),
		logging.Bool("voice_key_present", strings.TrimSpace(cfg.Voice.APIKey) != ""),
		logging.Bool("notifications_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	statuses := preflight.CheckSystemDeps(cfg)
	for _, status := range statuses {
		attrs = append(attrs, logging.Bool(status.Command+"_available", status.Available))
	}
	if missing := deps.Missing(statuses); len(missing) > 0 {
		attrs = append(attrs, logging.Int("missing_dependencies", len(missing)))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
