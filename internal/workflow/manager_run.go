package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vidtranslate/internal/logging"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/services"
	"vidtranslate/internal/staging"
)

// Start recovers state left by a previous process and launches the workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.runner == nil {
		m.mu.Unlock()
		return errors.New("workflow job runner not configured")
	}
	m.mu.Unlock()

	if err := m.recoverInterrupted(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	workers := m.workerCount()
	m.wg.Add(workers)
	m.mu.Unlock()

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("worker-%d", i+1)
		go m.runWorker(runCtx, name, i == 0)
	}
	m.logger.Info("workflow started",
		logging.Int("workers", workers),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	return nil
}

// Stop cancels the workers and waits for them. A job that was running is
// failed as interrupted by its runner.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

// recoverInterrupted fails jobs a previous process left running and removes
// work directories that belong to no queued or running job.
func (m *Manager) recoverInterrupted(ctx context.Context) error {
	ids, err := m.store.FailRunning(ctx, queue.DaemonStopReason)
	if err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	}
	for _, id := range ids {
		logging.WarnWithContext(m.logger, "job interrupted by previous shutdown", "job_interrupted",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldImpact, "job marked failed; resubmit to retry"),
			logging.String(logging.FieldErrorHint, "stop the daemon only when no job is running"),
		)
	}

	queued, err := m.store.List(ctx, queue.StatusQueued)
	if err != nil {
		return fmt.Errorf("list queued jobs: %w", err)
	}
	keep := make(map[string]struct{}, len(queued))
	for _, job := range queued {
		keep[job.ID] = struct{}{}
	}
	result := staging.CleanOrphaned(ctx, m.cfg.Paths.WorkDir, keep, m.logger)
	if len(result.Removed) > 0 {
		m.logger.Info("removed orphaned work directories",
			logging.Int("count", len(result.Removed)),
			logging.String(logging.FieldEventType, "workdir_recovered"),
		)
	}
	return nil
}

func (m *Manager) runWorker(ctx context.Context, name string, maintenance bool) {
	defer m.wg.Done()
	ctx = services.WithWorker(ctx, name)
	logger := logging.WithContext(ctx, m.logger)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if maintenance {
			m.purgeRetrieved(ctx, logger)
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.processJob(ctx, logger, job)
	}
}

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	jobCtx := services.WithRequestID(services.WithJobID(ctx, job.ID), uuid.NewString())
	jobLogger := logging.WithContext(jobCtx, logger)
	jobLogger.Info("job claimed", logging.String(logging.FieldEventType, "job_claimed"))

	m.setActive(job.ID, true)
	defer m.setActive(job.ID, false)

	stopHeartbeat := m.startHeartbeat(jobCtx, jobLogger, job.ID)
	err := m.runner.Run(jobCtx, job)
	stopHeartbeat()

	if err != nil {
		m.setLastError(err)
	}
	m.setLastJob(job.ID)
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to claim next job", "queue_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.retryDelay):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) purgeRetrieved(ctx context.Context, logger *slog.Logger) {
	hours := m.cfg.Workflow.RetrievedRetentionHours
	if hours <= 0 {
		return
	}
	m.mu.Lock()
	if time.Since(m.lastPurge) < time.Minute {
		m.mu.Unlock()
		return
	}
	m.lastPurge = time.Now()
	m.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	ids, err := m.store.PurgeRetrieved(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(logger, "purge of retrieved jobs failed", "job_purge_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "retrieved jobs remain listed"),
		)
		return
	}
	for _, id := range ids {
		if m.outbox != nil {
			m.outbox.Discard(id)
		}
	}
	if len(ids) > 0 {
		logger.Info("purged retrieved jobs",
			logging.Int("count", len(ids)),
			logging.String(logging.FieldEventType, "job_purge"),
		)
	}
}

func (m *Manager) setActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if active {
		m.active[id] = struct{}{}
		return
	}
	delete(m.active, id)
}
