package model

import (
	"context"
	"time"
)

// Probe measures one network metric. Successive Measure calls on the same
// probe never overlap.
type Probe interface {
	Name() string
	Kind() MetricKind
	Measure(ctx context.Context) (MetricSample, error)
}

// CounterSource reads cumulative interface counters.
type CounterSource interface {
	ReadCounters(ctx context.Context, iface string) (CounterSnapshot, error)
}

// Pinger sends one echo request and returns the round-trip time.
type Pinger interface {
	Ping(ctx context.Context, target string, timeout time.Duration) (time.Duration, error)
}

// Logger is the logging collaborator used by every pipeline stage.
type Logger interface {
	LogError(context string, err error)
	LogMetric(record TelemetryRecord)
}

// Recorder receives pipeline counters. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ProbeRun(probe string, elapsed time.Duration, err error)
	Delivery(report DeliveryReport)
}

// RecordObserver is notified after every reporting cycle.
type RecordObserver interface {
	ObserveRecord(record TelemetryRecord, report DeliveryReport)
}
