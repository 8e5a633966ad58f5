package probe

import (
	"errors"
	"testing"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snap(offset time.Duration, rxBytes, txBytes, rxPkts, txPkts uint64) model.CounterSnapshot {
	return model.CounterSnapshot{
		Timestamp: t0.Add(offset),
		RxBytes:   rxBytes,
		TxBytes:   txBytes,
		RxPackets: rxPkts,
		TxPackets: txPkts,
	}
}

func TestComputeRates_ExactBitsPerSecond(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prev     model.CounterSnapshot
		cur      model.CounterSnapshot
		wantRx   float64
		wantTx   float64
		wantRxPk float64
	}{
		{"one second", snap(0, 1000, 0, 10, 0), snap(time.Second, 2000, 500, 20, 5), 8000, 4000, 10},
		{"ten seconds", snap(0, 0, 0, 0, 0), snap(10*time.Second, 125000, 250000, 100, 0), 100000, 200000, 10},
		{"idle", snap(0, 42, 42, 1, 1), snap(2*time.Second, 42, 42, 1, 1), 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, err := ComputeRates(tt.prev, tt.cur)
			if err != nil {
				t.Fatalf("ComputeRates() error = %v", err)
			}
			if r.RxBps != tt.wantRx || r.TxBps != tt.wantTx || r.RxPps != tt.wantRxPk {
				t.Fatalf("rates = %+v, want rx=%v tx=%v rxpps=%v", r, tt.wantRx, tt.wantTx, tt.wantRxPk)
			}
			if r.Reset.Any() {
				t.Fatalf("unexpected discontinuity %+v", r.Reset)
			}
		})
	}
}

func TestComputeRates_NonAdvancingClock(t *testing.T) {
	t.Parallel()

	for _, offset := range []time.Duration{0, -time.Second} {
		_, err := ComputeRates(snap(0, 0, 0, 0, 0), snap(offset, 10, 10, 1, 1))
		if !errors.Is(err, ErrNonMonotonicClock) {
			t.Fatalf("offset %v: error = %v, want ErrNonMonotonicClock", offset, err)
		}
		if !errors.Is(err, model.ErrCounterAnomaly) {
			t.Fatalf("offset %v: error should wrap ErrCounterAnomaly", offset)
		}
	}
}

func TestComputeRates_FlagsDecreasingDirectionOnly(t *testing.T) {
	t.Parallel()

	r, err := ComputeRates(snap(0, 5000, 100, 50, 1), snap(time.Second, 100, 200, 60, 2))
	if err != nil {
		t.Fatalf("ComputeRates() error = %v", err)
	}
	if !r.Reset.RxBytes || r.Reset.TxBytes || r.Reset.RxPackets || r.Reset.TxPackets {
		t.Fatalf("Reset = %+v, want only RxBytes", r.Reset)
	}
	if r.RxBps != 0 {
		t.Fatalf("RxBps = %v, want 0 for a reset direction", r.RxBps)
	}
	if r.TxBps != 800 {
		t.Fatalf("TxBps = %v, want 800", r.TxBps)
	}
}

func TestRateCalculator_FirstUpdateNeedsTwoSamples(t *testing.T) {
	t.Parallel()

	var c RateCalculator
	_, err := c.Update(snap(0, 1, 1, 1, 1))
	if !errors.Is(err, ErrNeedTwoSamples) || !errors.Is(err, model.ErrNoSample) {
		t.Fatalf("first Update() error = %v, want ErrNeedTwoSamples", err)
	}
	if _, ok := c.Previous(); !ok {
		t.Fatal("first snapshot should be stored as baseline")
	}
}

func TestRateCalculator_WrapReportsPreviousRate(t *testing.T) {
	t.Parallel()

	var c RateCalculator
	_, _ = c.Update(snap(0, 0, 0, 0, 0))

	first, err := c.Update(snap(time.Second, 1000, 2000, 10, 20))
	if err != nil {
		t.Fatalf("second Update() error = %v", err)
	}
	if first.RxBps != 8000 || first.TxBps != 16000 {
		t.Fatalf("first rates = %+v", first)
	}

	// rx wraps, tx keeps counting
	got, err := c.Update(snap(2*time.Second, 10, 3000, 12, 30))
	if err != nil {
		t.Fatalf("wrap Update() error = %v", err)
	}
	if got.RxBps != first.RxBps {
		t.Fatalf("RxBps after wrap = %v, want previous %v", got.RxBps, first.RxBps)
	}
	if got.TxBps != 8000 {
		t.Fatalf("TxBps after wrap = %v, want 8000", got.TxBps)
	}
	if got.RxBps < 0 || got.TxBps < 0 {
		t.Fatalf("negative rate %+v", got)
	}

	prev, _ := c.Previous()
	if prev.RxBytes != 10 {
		t.Fatalf("baseline RxBytes = %d, want 10 (wrapped snapshot)", prev.RxBytes)
	}

	// the next cycle is computed against the wrapped snapshot
	next, err := c.Update(snap(3*time.Second, 1010, 3000, 12, 30))
	if err != nil {
		t.Fatalf("post-wrap Update() error = %v", err)
	}
	if next.RxBps != 8000 {
		t.Fatalf("post-wrap RxBps = %v, want 8000", next.RxBps)
	}
}

func TestRateCalculator_WrapWithoutHistoryIsAnomaly(t *testing.T) {
	t.Parallel()

	var c RateCalculator
	_, _ = c.Update(snap(0, 5000, 5000, 5, 5))

	_, err := c.Update(snap(time.Second, 10, 6000, 6, 6))
	if !errors.Is(err, model.ErrCounterAnomaly) {
		t.Fatalf("Update() error = %v, want ErrCounterAnomaly", err)
	}
	prev, _ := c.Previous()
	if prev.RxBytes != 10 {
		t.Fatalf("baseline not reseeded after discard: %+v", prev)
	}
}

func TestRateCalculator_ReseedsOnNonAdvancingClock(t *testing.T) {
	t.Parallel()

	var c RateCalculator
	_, _ = c.Update(snap(time.Second, 0, 0, 0, 0))
	if _, err := c.Update(snap(time.Second, 100, 100, 1, 1)); !errors.Is(err, ErrNonMonotonicClock) {
		t.Fatalf("Update() error = %v, want ErrNonMonotonicClock", err)
	}
	r, err := c.Update(snap(2*time.Second, 200, 100, 2, 1))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if r.RxBps != 800 {
		t.Fatalf("RxBps = %v, want 800 against the reseeded baseline", r.RxBps)
	}
}

func TestUtilization(t *testing.T) {
	t.Parallel()

	if _, ok := Utilization(1000, 0); ok {
		t.Fatal("Utilization with zero capacity should report ok=false")
	}
	pct, ok := Utilization(250_000_000, 1_000_000_000)
	if !ok || pct != 25 {
		t.Fatalf("Utilization() = %v, %v, want 25, true", pct, ok)
	}
}
