package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "switchyard"

// StartRunSpan starts a span for an orchestration run.
func StartRunSpan(ctx context.Context, initialAgent, category, strategy string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "run",
		trace.WithAttributes(
			attribute.String("run.initial_agent", initialAgent),
			attribute.String("run.category", category),
			attribute.String("run.strategy", strategy),
		),
	)
}

// StartHandoffSpan starts a span for one agent-to-agent transfer.
func StartHandoffSpan(ctx context.Context, fromAgent, toAgent string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "handoff",
		trace.WithAttributes(
			attribute.String("handoff.from", fromAgent),
			attribute.String("handoff.to", toAgent),
		),
	)
}

// StartGateSpan starts a span for a gate evaluation.
func StartGateSpan(ctx context.Context, actionType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "gate.evaluate",
		trace.WithAttributes(
			attribute.String("gate.action_type", actionType),
		),
	)
}
