package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vidtranslate/internal/config"
	"vidtranslate/internal/logging"
	"vidtranslate/internal/queue"
	"vidtranslate/internal/stage"
)

// JobRunner executes one claimed job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, job *queue.Job) error
}

// HealthSource reports capability readiness.
type HealthSource interface {
	HealthChecks(ctx context.Context) []stage.Health
}

// Outbox releases delivered files of purged jobs.
type Outbox interface {
	Discard(jobID string)
}

// Manager coordinates job submission and the worker pool.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	runner       JobRunner
	outbox       Outbox
	logger       *slog.Logger
	pollInterval time.Duration
	retryDelay   time.Duration
	beatInterval time.Duration

	health *healthCache
	wake   chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJobID string
	active    map[string]struct{}
	lastPurge time.Time
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithHealthSource enables capability health reporting in Status.
func WithHealthSource(source HealthSource, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.health = newHealthCache(source, ttl)
	}
}

// WithOutbox lets purges remove delivered files.
func WithOutbox(outbox Outbox) ManagerOption {
	return func(m *Manager) {
		m.outbox = outbox
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, runner JobRunner, logger *slog.Logger, opts ...ManagerOption) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	workers := cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		cfg:          cfg,
		store:        store,
		runner:       runner,
		logger:       logger,
		pollInterval: seconds(cfg.Workflow.QueuePollInterval, 5*time.Second),
		retryDelay:   seconds(cfg.Workflow.ErrorRetryInterval, 10*time.Second),
		beatInterval: seconds(cfg.Workflow.HeartbeatInterval, 15*time.Second),
		wake:         make(chan struct{}, workers),
		active:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) workerCount() int {
	if m.cfg.Workflow.Workers <= 0 {
		return 1
	}
	return m.cfg.Workflow.Workers
}

func seconds(value int, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value) * time.Second
}
