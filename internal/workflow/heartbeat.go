package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vidtranslate/internal/logging"
)

// startHeartbeat refreshes the job's last_heartbeat every beatInterval until
// the returned stop function is called. Stop blocks until the loop exits so
// no update races the job's final transition.
func (m *Manager) startHeartbeat(ctx context.Context, logger *slog.Logger, jobID string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.beatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := m.store.UpdateHeartbeat(ctx, jobID)
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			logging.WarnWithContext(logger, "heartbeat update failed", "heartbeat_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "job liveness may look stale in status output"),
			)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
