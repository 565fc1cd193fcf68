package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vidtranslate/internal/api"
	"vidtranslate/internal/config"
	"vidtranslate/internal/delivery"
	"vidtranslate/internal/deps"
	"vidtranslate/internal/logging"
	"vidtranslate/internal/notifications"
	"vidtranslate/internal/preflight"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/workflow"
)

// Daemon coordinates the scheduler and the HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	outbox   *delivery.Outbox
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	DeliveryDir  string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, outbox *delivery.Outbox) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || outbox == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, and outbox")
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		outbox:   outbox,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, launches the workers and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vidtranslate daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("vidtranslate daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock. Running
// jobs are failed as interrupted by their pipelines.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("vidtranslate daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the job store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the address the API is listening on, or the configured
// bind address before Start.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Submit enqueues a job and returns its initial report.
func (d *Daemon) Submit(ctx context.Context, req api.SubmitRequest) (api.JobReport, error) {
	job, err := d.workflow.Submit(ctx, workflow.SubmitRequest{
		SourcePath:     req.SourcePath,
		TargetLanguage: req.TargetLanguage,
		PreserveVoice:  req.PreserveVoice,
	})
	if err != nil {
		return api.JobReport{}, err
	}
	return api.FromJob(job, nil), nil
}

// Job returns the polling report for one job, minting a fresh download link
// when the job succeeded and its output is still available.
func (d *Daemon) Job(ctx context.Context, id string) (api.JobReport, error) {
	job, err := d.workflow.GetStatus(ctx, id)
	if err != nil {
		return api.JobReport{}, err
	}
	var link *delivery.Link
	if job.Status == queue.StatusSucceeded && job.Result != nil {
		if l, ok := d.outbox.Link(job.ID, job.Result.FileName); ok {
			link = &l
		}
	}
	return api.FromJob(job, link), nil
}

// Jobs lists job reports filtered by status names.
func (d *Daemon) Jobs(ctx context.Context, statuses []string) ([]api.JobReport, error) {
	jobs, err := d.workflow.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(jobs), nil
}

// Remove deletes a finished job and its delivered file.
func (d *Daemon) Remove(ctx context.Context, id string) error {
	return d.workflow.Remove(ctx, id)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.cfg.QueueDBPath(),
		LockFilePath: d.lockPath,
		DeliveryDir:  d.outbox.Dir(),
		Dependencies: preflight.CheckSystemDeps(d.cfg),
	}
}
