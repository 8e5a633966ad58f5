package observe

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the agent's Prometheus collectors.
type Metrics struct {
	probeRuns        *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	deliveryAttempts *prometheus.CounterVec
	recordsSent      prometheus.Counter
	recordsDropped   prometheus.Counter
	errors           *prometheus.CounterVec
	latency          prometheus.Gauge
	loss             prometheus.Gauge
	throughput       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		probeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprobe_probe_runs_total",
			Help: "Probe invocations by result (ok, error, no_sample).",
		}, []string{"probe", "result"}),
		probeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netprobe_probe_duration_seconds",
			Help:    "Wall time of one probe invocation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"probe"}),
		deliveryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprobe_delivery_attempts_total",
			Help: "UDP send attempts by outcome.",
		}, []string{"outcome"}),
		recordsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprobe_records_sent_total",
			Help: "Records delivered to the collector socket.",
		}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netprobe_records_dropped_total",
			Help: "Records dropped after all send attempts failed.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netprobe_errors_total",
			Help: "Errors reported to the logger, by context.",
		}, []string{"context"}),
		latency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netprobe_latency_ms",
			Help: "Latest mean round-trip time in milliseconds.",
		}),
		loss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netprobe_packet_loss_pct",
			Help: "Latest packet loss percentage.",
		}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netprobe_throughput_bps",
			Help: "Latest interface throughput in bits per second.",
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{
		m.probeRuns, m.probeDuration, m.deliveryAttempts, m.recordsSent,
		m.recordsDropped, m.errors, m.latency, m.loss, m.throughput,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
