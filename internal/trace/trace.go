// Package trace wraps OpenTelemetry behind a small tracer value with two
// implementations: a real OTLP-backed tracer and a no-op one. The choice
// is made once at process start and the tracer is passed explicitly to
// whatever needs it.
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mtzanidakis/gridswarm/internal/config"
)

// Session outcomes recorded on span end.
const (
	OutcomeSuccess         = "success"
	OutcomeBudgetExhausted = "budget_exhausted"
	OutcomeError           = "error"
)

type Tracer struct {
	tracer   oteltrace.Tracer
	shutdown func(context.Context) error
}

// Setup initialises tracing for the process. When cfg is disabled or has
// no endpoint, the returned tracer is a no-op and no global provider is
// registered.
func Setup(ctx context.Context, cfg config.TraceConfig) (*Tracer, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return Noop(), nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("gridswarm"),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Tracer{
		tracer:   tp.Tracer("gridswarm"),
		shutdown: tp.Shutdown,
	}, nil
}

// Noop returns a tracer that records nothing.
func Noop() *Tracer {
	return &Tracer{
		tracer:   noop.NewTracerProvider().Tracer("gridswarm"),
		shutdown: func(context.Context) error { return nil },
	}
}

// StartSession opens a span covering one agent's full session.
func (t *Tracer) StartSession(ctx context.Context, name, gameID string) (context.Context, Session) {
	ctx, span := t.tracer.Start(ctx, name,
		oteltrace.WithAttributes(attribute.String("game.id", gameID)),
	)
	return ctx, Session{span: span}
}

// Shutdown flushes pending spans; callers should defer it.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}

// Session is one in-flight agent session span.
type Session struct {
	span oteltrace.Span
}

// End closes the span with the session outcome and final counters.
func (s Session) End(outcome string, actions, score int) {
	s.span.SetAttributes(
		attribute.String("agent.outcome", outcome),
		attribute.Int("agent.actions", actions),
		attribute.Int("agent.score", score),
	)
	if outcome == OutcomeError {
		s.span.SetStatus(codes.Error, outcome)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
