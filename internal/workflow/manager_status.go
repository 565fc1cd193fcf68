package workflow

import (
	"context"
	"sort"

	"vidtranslate/internal/logging"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	Workers    int
	ActiveJobs []string
	LastError  string
	LastJobID  string
	QueueStats map[queue.Status]int
	Health     []stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		Workers:   m.workerCount(),
		LastJobID: m.lastJobID,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	for id := range m.active {
		summary.ActiveJobs = append(summary.ActiveJobs, id)
	}
	m.mu.RUnlock()
	sort.Strings(summary.ActiveJobs)

	stats, err := m.store.Stats(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "failed to read queue stats", "queue_stats_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "status output omits job counts"),
		)
	}
	summary.QueueStats = stats

	if m.health != nil {
		summary.Health = m.health.get(ctx)
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(id string) {
	m.mu.Lock()
	m.lastJobID = id
	m.mu.Unlock()
}
