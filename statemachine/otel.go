package statemachine

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statemachine"

// startTransitionSpan creates the span covering one transition.
// Uses the global tracer initialized by github.com/amp-labs/amp-state/telemetry.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startTransitionSpan(ctx context.Context, labels ObservabilityLabels) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "statemachine.transition")
	span.SetAttributes(
		attribute.String("machine", labels.MachineName),
		attribute.String("machine_id", labels.MachineID),
		attribute.String("event", labels.Event),
	)
	logSpanDebug(ctx, "started", "statemachine.transition", span)

	return ctx, span
}

// logSpanDebug logs span creation when STATEMACHINE_DEBUG is enabled.
func logSpanDebug(ctx context.Context, phase string, spanName string, span trace.Span) {
	if !isDebugMode() {
		return
	}

	spanCtx := span.SpanContext()
	slog.DebugContext(ctx, "OTEL Span "+phase,
		"span_name", spanName,
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}

// extractTraceContext extracts trace ID and span ID from context for logging.
func extractTraceContext(ctx context.Context) (traceID, spanID string) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()

		return spanCtx.TraceID().String(), spanCtx.SpanID().String()
	}

	return "", ""
}

func isDebugMode() bool {
	return strings.EqualFold(os.Getenv("STATEMACHINE_DEBUG"), "1") ||
		strings.EqualFold(os.Getenv("STATEMACHINE_DEBUG"), "true")
}
