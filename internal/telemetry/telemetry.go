// Package telemetry wires the router's per-call tracing and outcome
// counters through the process-wide OpenTelemetry providers. This binary
// installs no tracer or meter provider and no exporter, so spans and
// counts go to OpenTelemetry's default no-op providers.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nextlevelbuilder/dialer/internal/router"

// Telemetry holds the tracer and counters the router instruments every
// routed call with: one span per call (router.route_call) and a counter
// keyed by outcome.
type Telemetry struct {
	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// New builds a Telemetry from the process-wide otel providers. cmd/serve.go
// does not call otel.SetTracerProvider / otel.SetMeterProvider, so the
// result is a working no-op instance there.
func New() (*Telemetry, error) {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)
	outcomes, err := meter.Int64Counter(
		"router.route_call.outcomes",
		metric.WithDescription("count of routed calls by terminal outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &Telemetry{tracer: tracer, outcomes: outcomes}, nil
}

// StartRouteCall opens the router.route_call span for one caller channel
// entering the routing loop.
func (t *Telemetry) StartRouteCall(ctx context.Context, callCenterID, queueID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "router.route_call", trace.WithAttributes(
		attribute.String("call_center_id", callCenterID),
		attribute.String("queue_id", queueID),
	))
}

// RecordOutcome closes out a routed call with its outcome as reported by
// the router's outcomeFor (bridged, queued, originating, deflected,
// origination_failed) and increments the matching counter.
func (t *Telemetry) RecordOutcome(ctx context.Context, span trace.Span, outcome, selectedAgent string) {
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.String("selected_agent", selectedAgent),
	)
	t.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.End()
}
