package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "caremesh/agent-guard"

// GetTracer returns the tracer for the agent-guard service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartPipelineSpan starts a span covering one pipeline stage.
func StartPipelineSpan(ctx context.Context, stage, requestID, tenantID string) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "pipeline."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("request.tenant_id", tenantID),
		),
	)
}

// StartToolSpan starts a span for one tool call.
func StartToolSpan(ctx context.Context, toolName, mode, planID string, sequence int) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, "tool."+mode,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
			attribute.String("tool.plan_id", planID),
			attribute.Int("tool.sequence", sequence),
		),
	)
}

// EndSpan records err on the span (if any) and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
