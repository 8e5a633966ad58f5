package model

import "time"

// TelemetryRecord is the aggregated view of all probe slots for one
// reporting cycle. A nil field means no sample was available; zero is a
// real measurement.
type TelemetryRecord struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Interface       string    `json:"interface"`
	LatencyMs       *float64  `json:"latency_ms,omitempty"`
	PacketLossPct   *float64  `json:"packet_loss_pct,omitempty"`
	ThroughputRxBps *float64  `json:"throughput_rx_bps,omitempty"`
	ThroughputTxBps *float64  `json:"throughput_tx_bps,omitempty"`
	LongTermLossPct *float64  `json:"long_term_loss_pct,omitempty"`
	RxPps           *float64  `json:"rx_pps,omitempty"`
	TxPps           *float64  `json:"tx_pps,omitempty"`
	RxUtilPct       *float64  `json:"rx_util_pct,omitempty"`
	TxUtilPct       *float64  `json:"tx_util_pct,omitempty"`
}

// DeliveryState is the sender's position in one Send call.
type DeliveryState string

const (
	StateIdle    DeliveryState = "idle"
	StateSending DeliveryState = "sending"
	StateSuccess DeliveryState = "success"
	StateFailed  DeliveryState = "failed"
)

// DeliveryOutcome classifies one transmission attempt.
type DeliveryOutcome string

const (
	OutcomeSuccess      DeliveryOutcome = "success"
	OutcomeTimeout      DeliveryOutcome = "timeout"
	OutcomeNetworkError DeliveryOutcome = "network_error"
)

// DeliveryAttempt describes one try at sending a record.
type DeliveryAttempt struct {
	RecordID string          `json:"record_id"`
	Attempt  int             `json:"attempt"`
	Outcome  DeliveryOutcome `json:"outcome"`
	Backoff  time.Duration   `json:"backoff"`
	Err      string          `json:"error,omitempty"`
}

// DeliveryReport summarizes one Send call.
type DeliveryReport struct {
	RecordID   string            `json:"record_id"`
	State      DeliveryState     `json:"state"`
	Attempts   []DeliveryAttempt `json:"attempts"`
	Reacquired bool              `json:"reacquired,omitempty"`
	Bytes      int               `json:"bytes"`
	Finished   time.Time         `json:"finished"`
}

// SlotStatus is the read-only view of one probe slot.
type SlotStatus struct {
	Probe     string        `json:"probe"`
	Kind      MetricKind    `json:"kind"`
	Sample    *MetricSample `json:"sample,omitempty"`
	Runs      uint64        `json:"runs"`
	Errors    uint64        `json:"errors"`
	LastError string        `json:"last_error,omitempty"`
}

// AgentStatus is the snapshot served by the status surface.
type AgentStatus struct {
	Interface    string           `json:"interface"`
	Started      time.Time        `json:"started"`
	Cycles       uint64           `json:"cycles"`
	Delivered    uint64           `json:"delivered"`
	Dropped      uint64           `json:"dropped"`
	SenderState  DeliveryState    `json:"sender_state"`
	Slots        []SlotStatus     `json:"slots"`
	LastRecord   *TelemetryRecord `json:"last_record,omitempty"`
	LastDelivery *DeliveryReport  `json:"last_delivery,omitempty"`
}

// Float returns a pointer to v, for building records by hand.
func Float(v float64) *float64 { return &v }
