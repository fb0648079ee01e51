// Per-request tracing: one span per Request Context, named after the
// endpoint and request type, so a slow handler or a stuck auth call shows
// up in whatever OTLP backend the deployment points the exporter at.
package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/podehq/pode/engine"

// requestSpan wraps a trace.Span so RunPipeline can defer span.End()
// unconditionally, even when tracing is disabled (Tracer is nil) and
// span is the package-level noop span.
type requestSpan struct {
	span trace.Span
}

func (r requestSpan) End() {
	if r.span != nil {
		r.span.End()
	}
}

// startRequestSpan opens a span on rc's context and replaces it with the
// span-carrying context, so downstream code (handlers doing their own
// tracing, outbound calls) nests under it automatically.
func startRequestSpan(rc *RequestContext) requestSpan {
	tracer := rc.Server.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	name := "request"
	if rc.Endpoint != nil && rc.Endpoint.Name != "" {
		name = rc.Endpoint.Name
	}
	ctx, span := tracer.Start(rc.Context(), name,
		trace.WithAttributes(
			attribute.String("pode.request.id", rc.ID),
			attribute.String("pode.request.type", rc.Type.String()),
		),
	)
	if rc.HTTP != nil {
		span.SetAttributes(
			attribute.String("http.method", rc.HTTP.Method),
			attribute.String("http.path", rc.HTTP.Path),
		)
	}
	rc.ctx = ctx
	return requestSpan{span: span}
}

// NewNoopTracer returns a tracer backed by otel's global no-op provider,
// used when a server has no exporter configured ("metrics are
// opt-in" principle extended to tracing).
func NewNoopTracer() trace.Tracer { return trace.NewNoopTracerProvider().Tracer(tracerName) }
