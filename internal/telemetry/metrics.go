// Package telemetry holds the gateway's metric instruments.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/tradewire/execgate"

// Metrics bundles the order-flow instruments. The zero value is unusable;
// construct through NewMetrics, which falls back to the globally registered
// meter provider (a noop one when telemetry is disabled).
type Metrics struct {
	ordersSubmitted metric.Int64Counter
	orderFailures   metric.Int64Counter
	balanceQueries  metric.Int64Counter
	orderLatency    metric.Float64Histogram
}

// NewMetrics registers the gateway instruments on the given provider, or the
// global provider when nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	ordersSubmitted, err := meter.Int64Counter("execgate.orders.submitted",
		metric.WithDescription("Market orders submitted, by venue, side and outcome."))
	if err != nil {
		return nil, err
	}
	orderFailures, err := meter.Int64Counter("execgate.orders.failed",
		metric.WithDescription("Order submissions surfaced as errors, by venue and error code."))
	if err != nil {
		return nil, err
	}
	balanceQueries, err := meter.Int64Counter("execgate.balances.queries",
		metric.WithDescription("Balance queries, by venue and outcome."))
	if err != nil {
		return nil, err
	}
	orderLatency, err := meter.Float64Histogram("execgate.orders.duration",
		metric.WithDescription("End-to-end order execution latency in seconds."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersSubmitted: ordersSubmitted,
		orderFailures:   orderFailures,
		balanceQueries:  balanceQueries,
		orderLatency:    orderLatency,
	}, nil
}

// RecordOrder records one completed order attempt.
func (m *Metrics) RecordOrder(ctx context.Context, venue, side string, estimated bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("venue", venue),
		attribute.String("side", side),
		attribute.Bool("estimated", estimated),
	)
	m.ordersSubmitted.Add(ctx, 1, attrs)
	m.orderLatency.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordOrderFailure records a failed order attempt with its taxonomy code.
func (m *Metrics) RecordOrderFailure(ctx context.Context, venue, side, code string) {
	if m == nil {
		return
	}
	m.orderFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", venue),
		attribute.String("side", side),
		attribute.String("code", code),
	))
}

// RecordBalanceQuery records one balance fetch.
func (m *Metrics) RecordBalanceQuery(ctx context.Context, venue string, ok bool) {
	if m == nil {
		return
	}
	m.balanceQueries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("venue", venue),
		attribute.Bool("ok", ok),
	))
}
