package aggregate

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleSlot(kind model.MetricKind, value float64, aux map[string]float64, at time.Time) model.SlotStatus {
	return model.SlotStatus{
		Probe:  string(kind),
		Kind:   kind,
		Sample: &model.MetricSample{Kind: kind, Value: value, Aux: aux, Timestamp: at, Valid: true},
	}
}

func TestBuild_FillsFieldsFromSlots(t *testing.T) {
	t.Parallel()

	a := New("eth0")
	slots := []model.SlotStatus{
		sampleSlot(model.KindLatency, 12.5, nil, now),
		sampleSlot(model.KindPacketLoss, 20, map[string]float64{model.AuxLongTermLossPct: 5}, now),
		sampleSlot(model.KindThroughput, 8000, map[string]float64{
			model.AuxTxBps: 4000,
			model.AuxRxPps: 10,
			model.AuxTxPps: 5,
		}, now),
	}

	rec, err := a.Build(now, slots)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if rec.ID == "" || rec.Interface != "eth0" || !rec.Timestamp.Equal(now) {
		t.Fatalf("record header = %+v", rec)
	}
	checks := map[string]*float64{
		"latency":   rec.LatencyMs,
		"loss":      rec.PacketLossPct,
		"long-term": rec.LongTermLossPct,
		"rx":        rec.ThroughputRxBps,
		"tx":        rec.ThroughputTxBps,
		"rx pps":    rec.RxPps,
		"tx pps":    rec.TxPps,
	}
	want := map[string]float64{"latency": 12.5, "loss": 20, "long-term": 5, "rx": 8000, "tx": 4000, "rx pps": 10, "tx pps": 5}
	for name, got := range checks {
		if got == nil || *got != want[name] {
			t.Fatalf("%s = %v, want %v", name, got, want[name])
		}
	}
	if rec.RxUtilPct != nil || rec.TxUtilPct != nil {
		t.Fatal("utilization should be absent without link capacity")
	}
}

func TestBuild_EmptySlotsStayAbsent(t *testing.T) {
	t.Parallel()

	a := New("eth0")
	rec, err := a.Build(now, []model.SlotStatus{
		sampleSlot(model.KindLatency, 0, nil, now),
		{Probe: "throughput", Kind: model.KindThroughput},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if rec.LatencyMs == nil || *rec.LatencyMs != 0 {
		t.Fatalf("LatencyMs = %v, want a real 0", rec.LatencyMs)
	}
	if rec.ThroughputRxBps != nil || rec.PacketLossPct != nil {
		t.Fatalf("absent fields should be nil: %+v", rec)
	}
}

func TestBuild_FreshIDPerCycle(t *testing.T) {
	t.Parallel()

	a := New("eth0")
	r1, _ := a.Build(now, nil)
	r2, _ := a.Build(now.Add(time.Minute), nil)
	if r1.ID == r2.ID {
		t.Fatalf("IDs should differ, both %q", r1.ID)
	}
}

func TestBuild_NewestSampleOfKindWins(t *testing.T) {
	t.Parallel()

	a := New("eth0")
	rec, err := a.Build(now, []model.SlotStatus{
		sampleSlot(model.KindLatency, 40, nil, now.Add(-time.Minute)),
		sampleSlot(model.KindLatency, 10, nil, now),
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if *rec.LatencyMs != 10 {
		t.Fatalf("LatencyMs = %v, want 10", *rec.LatencyMs)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	good := model.TelemetryRecord{ID: "r1", Timestamp: now, Interface: "eth0"}
	tests := []struct {
		name   string
		mutate func(*model.TelemetryRecord)
	}{
		{"no interface", func(r *model.TelemetryRecord) { r.Interface = "" }},
		{"no id", func(r *model.TelemetryRecord) { r.ID = "" }},
		{"no timestamp", func(r *model.TelemetryRecord) { r.Timestamp = time.Time{} }},
		{"nan latency", func(r *model.TelemetryRecord) { r.LatencyMs = model.Float(math.NaN()) }},
		{"inf rx", func(r *model.TelemetryRecord) { r.ThroughputRxBps = model.Float(math.Inf(1)) }},
		{"negative tx", func(r *model.TelemetryRecord) { r.ThroughputTxBps = model.Float(-1) }},
		{"loss above 100", func(r *model.TelemetryRecord) { r.PacketLossPct = model.Float(100.5) }},
		{"long-term loss above 100", func(r *model.TelemetryRecord) { r.LongTermLossPct = model.Float(101) }},
	}

	if err := Validate(good); err != nil {
		t.Fatalf("Validate(good) error = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := good
			tt.mutate(&rec)
			if err := Validate(rec); !errors.Is(err, model.ErrConfiguration) {
				t.Fatalf("Validate() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestBuild_RejectsMissingInterface(t *testing.T) {
	t.Parallel()

	if _, err := New("").Build(now, nil); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("Build() error = %v, want ErrConfiguration", err)
	}
}
