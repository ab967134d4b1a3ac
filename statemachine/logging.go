package statemachine

import (
	"context"
	"log/slog"
	"time"
)

// Logger provides logging hooks for machine transitions.
type Logger interface {
	TransitionApplied(ctx context.Context, duration time.Duration, observers int)
	TransitionFailed(ctx context.Context, duration time.Duration, err error)
	EventQueued(ctx context.Context, depth int)
}

// ObservabilityLabels contains contextual labels for observability.
type ObservabilityLabels struct {
	MachineID   string
	MachineName string
	Event       string
}

// GetObservabilityLabels extracts observability labels from the context.
// Returns an empty ObservabilityLabels struct if the context was not produced by a transition.
func GetObservabilityLabels(ctx context.Context) ObservabilityLabels {
	labels, ok := ctx.Value(machineContextKey).(ObservabilityLabels)
	if !ok {
		return ObservabilityLabels{}
	}

	return labels
}

// DefaultLogger implements Logger using slog.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger that writes through slog.Default().
func NewDefaultLogger() *DefaultLogger {
	return NewSlogLogger(slog.Default())
}

// NewSlogLogger creates a logger that writes through the given slog.Logger.
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultLogger{
		logger: logger,
	}
}

func (l *DefaultLogger) fields(ctx context.Context) []any {
	labels := GetObservabilityLabels(ctx)

	fields := []any{
		"machine", labels.MachineName,
		"machine_id", labels.MachineID,
		"event", labels.Event,
	}

	if traceID, spanID := extractTraceContext(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID, "span_id", spanID)
	}

	return fields
}

func (l *DefaultLogger) TransitionApplied(ctx context.Context, duration time.Duration, observers int) {
	l.logger.DebugContext(ctx, "Transition applied",
		append(l.fields(ctx),
			"duration_us", duration.Microseconds(),
			"observers", observers,
		)...)
}

func (l *DefaultLogger) TransitionFailed(ctx context.Context, duration time.Duration, err error) {
	l.logger.ErrorContext(ctx, "Transition failed",
		append(l.fields(ctx),
			"duration_us", duration.Microseconds(),
			"error", err,
		)...)
}

func (l *DefaultLogger) EventQueued(ctx context.Context, depth int) {
	l.logger.DebugContext(ctx, "Event queued during notification",
		append(l.fields(ctx), "depth", depth)...)
}
