package model

import "time"

// MetricKind identifies which network metric a probe measures.
type MetricKind string

const (
	KindLatency    MetricKind = "latency"
	KindPacketLoss MetricKind = "packet_loss"
	KindThroughput MetricKind = "throughput"
)

// Aux keys carried next to a sample's primary value.
const (
	AuxTxBps            = "tx_bps"
	AuxRxPps            = "rx_pps"
	AuxTxPps            = "tx_pps"
	AuxRxUtilPct        = "rx_util_pct"
	AuxTxUtilPct        = "tx_util_pct"
	AuxLongTermLossPct  = "long_term_loss_pct"
	AuxMinMs            = "min_ms"
	AuxMaxMs            = "max_ms"
	AuxReachableTargets = "reachable_targets"
)

// MetricSample is one measurement produced by a probe.
//
// Value is in milliseconds for latency, percent for packet loss and
// received bits per second for throughput. Aux holds secondary figures
// of the same measurement (transmit rate, long-term loss and so on).
type MetricSample struct {
	Kind      MetricKind
	Value     float64
	Aux       map[string]float64
	Timestamp time.Time
	Valid     bool
}

// AuxValue returns the named secondary figure and whether it was set.
func (s MetricSample) AuxValue(key string) (float64, bool) {
	if s.Aux == nil {
		return 0, false
	}
	v, ok := s.Aux[key]
	return v, ok
}

// CounterSnapshot is one read of an interface's cumulative counters.
type CounterSnapshot struct {
	Timestamp time.Time
	RxBytes   uint64
	TxBytes   uint64
	RxPackets uint64
	TxPackets uint64
}
