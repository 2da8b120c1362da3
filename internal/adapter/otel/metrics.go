package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agenthub"

// Metrics holds all agenthub metric instruments.
type Metrics struct {
	ExecutionsStarted metric.Int64Counter
	ExecutionsFailed  metric.Int64Counter
	EventsSent        metric.Int64Counter
	SinksDropped      metric.Int64Counter
	DispatchDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ExecutionsStarted, err = meter.Int64Counter("agenthub.executions.started",
		metric.WithDescription("Number of executor dispatches started"))
	if err != nil {
		return nil, err
	}

	m.ExecutionsFailed, err = meter.Int64Counter("agenthub.executions.failed",
		metric.WithDescription("Number of executor dispatches that returned an error"))
	if err != nil {
		return nil, err
	}

	m.EventsSent, err = meter.Int64Counter("agenthub.events.sent",
		metric.WithDescription("Number of task events sent to the event channel"))
	if err != nil {
		return nil, err
	}

	m.SinksDropped, err = meter.Int64Counter("agenthub.sinks.dropped",
		metric.WithDescription("Number of observer sinks dropped after a failed write"))
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("agenthub.dispatch.duration_seconds",
		metric.WithDescription("Dispatch duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
