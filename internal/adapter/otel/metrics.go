package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "opsboard"

// Metrics holds the credential broker's metric instruments.
type Metrics struct {
	FlowsStarted     metric.Int64Counter
	FlowsCompleted   metric.Int64Counter // attrs: provider, outcome, code
	Refreshes        metric.Int64Counter // attrs: provider, outcome, code
	ExchangeDuration metric.Float64Histogram
	StatusChecks     metric.Int64Counter // attrs: provider, status
}

// NewMetrics creates all metric instruments on mp, or on the global meter
// provider when mp is nil.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.FlowsStarted, err = meter.Int64Counter("opsboard.oauth.flows.started",
		metric.WithDescription("Number of OAuth flows started"))
	if err != nil {
		return nil, err
	}

	m.FlowsCompleted, err = meter.Int64Counter("opsboard.oauth.flows.completed",
		metric.WithDescription("Number of OAuth callbacks processed, by outcome"))
	if err != nil {
		return nil, err
	}

	m.Refreshes, err = meter.Int64Counter("opsboard.oauth.refreshes",
		metric.WithDescription("Number of token refresh attempts, by outcome"))
	if err != nil {
		return nil, err
	}

	m.ExchangeDuration, err = meter.Float64Histogram("opsboard.oauth.exchange.duration_seconds",
		metric.WithDescription("Provider token endpoint latency in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.StatusChecks, err = meter.Int64Counter("opsboard.status.checks",
		metric.WithDescription("Number of integration status checks, by resulting status"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
