package logging

import (
	"context"
	"log/slog"

	"vidtranslate/internal/services"
)

// Structured logging keys shared across packages.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldWorker        = "worker"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering (job_claimed, stage_failed).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// WithContext returns logger annotated with the job, stage, worker and
// request identifiers carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	for _, lookup := range []struct {
		key string
		get func(context.Context) (string, bool)
	}{
		{FieldJobID, services.JobIDFromContext},
		{FieldStage, services.StageFromContext},
		{FieldWorker, services.WorkerFromContext},
		{FieldCorrelationID, services.RequestIDFromContext},
	} {
		if value, ok := lookup.get(ctx); ok {
			args = append(args, slog.String(lookup.key, value))
		}
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
