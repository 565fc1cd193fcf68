package services

import "context"

type contextKey int

const (
	jobIDKey contextKey = iota
	stageKey
	workerKey
	requestIDKey
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueFrom(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithJobID annotates ctx with the translation job being processed.
func WithJobID(ctx context.Context, id string) context.Context { return withValue(ctx, jobIDKey, id) }

// WithStage annotates ctx with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// WithWorker annotates ctx with the workflow worker name.
func WithWorker(ctx context.Context, worker string) context.Context {
	return withValue(ctx, workerKey, worker)
}

// WithRequestID annotates ctx with an API request correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func JobIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, jobIDKey) }
func StageFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, stageKey) }
func WorkerFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, workerKey) }
func RequestIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, requestIDKey) }
