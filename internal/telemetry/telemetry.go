// Package telemetry wraps battle execution in OpenTelemetry spans, mirroring
// internal/platform/otel's span-per-request convention: a span per turn
// (battle.turn) and a span per dispatched event (battle.event.dispatch).
// Tracer is opt-in. A zero Tracer (or one built with a nil provider) uses
// the global no-op TracerProvider, so spans cost nothing and the engine's
// no-I/O, no-blocking guarantee holds unless a caller injects a real
// provider.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer issues the engine's spans. The zero value is ready to use and
// traces against the global TracerProvider (a no-op until something calls
// otel.SetTracerProvider).
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer builds a Tracer against provider. A nil provider falls back to
// otel.GetTracerProvider(), which is a no-op until a caller registers one.
func NewTracer(provider trace.TracerProvider) Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return Tracer{tracer: provider.Tracer("github.com/louisbranch/battlecore")}
}

// StartTurn opens a battle.turn span for the given turn number. The
// returned end func must be called with the turn's error (nil on success)
// once the turn finishes.
func (t Tracer) StartTurn(ctx context.Context, turn int) (context.Context, func(error)) {
	return t.start(ctx, "battle.turn", attribute.Int("battle.turn.number", turn))
}

// StartEventDispatch opens a battle.event.dispatch span for one dispatched
// event name (e.g. "on-hit", "residual").
func (t Tracer) StartEventDispatch(ctx context.Context, eventName string) (context.Context, func(error)) {
	return t.start(ctx, "battle.event.dispatch", attribute.String("battle.event.name", eventName))
}

func (t Tracer) start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	tracer := t.tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer("github.com/louisbranch/battlecore")
	}
	spanCtx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
	return spanCtx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
