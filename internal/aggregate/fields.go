package aggregate

import "github.com/tinytelemetry/netprobe/internal/model"

// field is one optional measurement of a TelemetryRecord. Every codec
// walks this table so field names stay identical across formats.
type field struct {
	key  string
	unit string
	ref  func(r *model.TelemetryRecord) **float64
}

var fields = []field{
	{"latency_ms", "ms", func(r *model.TelemetryRecord) **float64 { return &r.LatencyMs }},
	{"packet_loss_pct", "%", func(r *model.TelemetryRecord) **float64 { return &r.PacketLossPct }},
	{"throughput_rx_bps", "bit/s", func(r *model.TelemetryRecord) **float64 { return &r.ThroughputRxBps }},
	{"throughput_tx_bps", "bit/s", func(r *model.TelemetryRecord) **float64 { return &r.ThroughputTxBps }},
	{"long_term_loss_pct", "%", func(r *model.TelemetryRecord) **float64 { return &r.LongTermLossPct }},
	{"rx_pps", "{packet}/s", func(r *model.TelemetryRecord) **float64 { return &r.RxPps }},
	{"tx_pps", "{packet}/s", func(r *model.TelemetryRecord) **float64 { return &r.TxPps }},
	{"rx_util_pct", "%", func(r *model.TelemetryRecord) **float64 { return &r.RxUtilPct }},
	{"tx_util_pct", "%", func(r *model.TelemetryRecord) **float64 { return &r.TxUtilPct }},
}

func fieldByKey(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// EachField calls fn for every present measurement of rec, in wire order.
func EachField(rec model.TelemetryRecord, fn func(key string, v float64)) {
	for _, f := range fields {
		if p := *f.ref(&rec); p != nil {
			fn(f.key, *p)
		}
	}
}
