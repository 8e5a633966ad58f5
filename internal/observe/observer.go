package observe

import (
	"errors"
	"time"

	"github.com/tinytelemetry/netprobe/internal/aggregate"
	"github.com/tinytelemetry/netprobe/internal/model"
	"go.uber.org/zap"
)

// Observer is the logging, recording and record-observing collaborator of
// the pipeline. Metrics may be nil.
type Observer struct {
	log     *zap.Logger
	metrics *Metrics
}

var (
	_ model.Logger         = (*Observer)(nil)
	_ model.Recorder       = (*Observer)(nil)
	_ model.RecordObserver = (*Observer)(nil)
)

// NewObserver wraps log and metrics.
func NewObserver(log *zap.Logger, metrics *Metrics) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{log: log, metrics: metrics}
}

// Nop discards everything.
func Nop() *Observer {
	return NewObserver(zap.NewNop(), nil)
}

// Logger returns the underlying zap logger.
func (o *Observer) Logger() *zap.Logger { return o.log }

func (o *Observer) LogError(context string, err error) {
	o.log.Error("pipeline error", zap.String("context", context), zap.Error(err))
	if o.metrics != nil {
		o.metrics.errors.WithLabelValues(context).Inc()
	}
}

func (o *Observer) LogMetric(rec model.TelemetryRecord) {
	fields := []zap.Field{
		zap.String("id", rec.ID),
		zap.Time("timestamp", rec.Timestamp),
		zap.String("interface", rec.Interface),
	}
	aggregate.EachField(rec, func(key string, v float64) {
		fields = append(fields, zap.Float64(key, v))
	})
	o.log.Info("telemetry record", fields...)
}

func (o *Observer) ProbeRun(probe string, elapsed time.Duration, err error) {
	result := "ok"
	switch {
	case errors.Is(err, model.ErrNoSample):
		result = "no_sample"
	case err != nil:
		result = "error"
	}
	o.log.Debug("probe run", zap.String("probe", probe), zap.Duration("elapsed", elapsed), zap.String("result", result))
	if o.metrics == nil {
		return
	}
	o.metrics.probeRuns.WithLabelValues(probe, result).Inc()
	o.metrics.probeDuration.WithLabelValues(probe).Observe(elapsed.Seconds())
}

func (o *Observer) Delivery(report model.DeliveryReport) {
	o.log.Debug("delivery",
		zap.String("record_id", report.RecordID),
		zap.String("state", string(report.State)),
		zap.Int("attempts", len(report.Attempts)),
		zap.Bool("reacquired", report.Reacquired),
		zap.Int("bytes", report.Bytes),
	)
	if o.metrics == nil {
		return
	}
	for _, a := range report.Attempts {
		o.metrics.deliveryAttempts.WithLabelValues(string(a.Outcome)).Inc()
	}
	switch report.State {
	case model.StateSuccess:
		o.metrics.recordsSent.Inc()
	case model.StateFailed:
		o.metrics.recordsDropped.Inc()
	}
}

// ObserveRecord publishes the record's values as gauges. Absent fields
// leave their gauge unchanged.
func (o *Observer) ObserveRecord(rec model.TelemetryRecord, _ model.DeliveryReport) {
	if o.metrics == nil {
		return
	}
	if rec.LatencyMs != nil {
		o.metrics.latency.Set(*rec.LatencyMs)
	}
	if rec.PacketLossPct != nil {
		o.metrics.loss.Set(*rec.PacketLossPct)
	}
	if rec.ThroughputRxBps != nil {
		o.metrics.throughput.WithLabelValues("rx").Set(*rec.ThroughputRxBps)
	}
	if rec.ThroughputTxBps != nil {
		o.metrics.throughput.WithLabelValues("tx").Set(*rec.ThroughputTxBps)
	}
}
