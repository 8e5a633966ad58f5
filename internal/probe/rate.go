package probe

import (
	"fmt"

	"github.com/tinytelemetry/netprobe/internal/model"
)

var (
	// ErrNeedTwoSamples is returned for the first counter read: a rate
	// needs a previous snapshot to compare against.
	ErrNeedTwoSamples = fmt.Errorf("%w: need two counter snapshots", model.ErrNoSample)

	// ErrNonMonotonicClock is returned when a snapshot is not newer than
	// the one before it.
	ErrNonMonotonicClock = fmt.Errorf("%w: snapshot time did not advance", model.ErrCounterAnomaly)
)

// Rates holds per-direction rates derived from two counter snapshots.
// Byte rates are in bits per second, packet rates in packets per second.
type Rates struct {
	RxBps float64
	TxBps float64
	RxPps float64
	TxPps float64

	// Reset lists the directions whose counter went backwards.
	Reset Discontinuity
}

// Discontinuity flags the counters that went backwards between two
// snapshots (interface reset or wrap).
type Discontinuity struct {
	RxBytes   bool
	TxBytes   bool
	RxPackets bool
	TxPackets bool
}

// Any reports whether at least one counter went backwards.
func (d Discontinuity) Any() bool {
	return d.RxBytes || d.TxBytes || d.RxPackets || d.TxPackets
}

// ComputeRates derives rates from two snapshots. Directions whose counter
// decreased are flagged in Rates.Reset and their rate is left at zero;
// callers decide what to report instead.
func ComputeRates(prev, cur model.CounterSnapshot) (Rates, error) {
	dt := cur.Timestamp.Sub(prev.Timestamp)
	if dt <= 0 {
		return Rates{}, ErrNonMonotonicClock
	}
	secs := dt.Seconds()

	var r Rates
	r.RxBps, r.Reset.RxBytes = counterRate(prev.RxBytes, cur.RxBytes, secs, 8)
	r.TxBps, r.Reset.TxBytes = counterRate(prev.TxBytes, cur.TxBytes, secs, 8)
	r.RxPps, r.Reset.RxPackets = counterRate(prev.RxPackets, cur.RxPackets, secs, 1)
	r.TxPps, r.Reset.TxPackets = counterRate(prev.TxPackets, cur.TxPackets, secs, 1)
	return r, nil
}

func counterRate(prev, cur uint64, secs, scale float64) (float64, bool) {
	if cur < prev {
		return 0, true
	}
	return float64(cur-prev) * scale / secs, false
}

// Utilization returns rate as a percentage of the link capacity. ok is
// false when no capacity is configured.
func Utilization(rateBps, capacityBps float64) (pct float64, ok bool) {
	if capacityBps <= 0 {
		return 0, false
	}
	return rateBps / capacityBps * 100, true
}

// RateCalculator turns successive cumulative snapshots into rates. It
// keeps exactly one previous snapshot and the last rates it reported.
// It is not safe for concurrent use.
type RateCalculator struct {
	prev    model.CounterSnapshot
	hasPrev bool
	last    Rates
	hasLast bool
}

// Update feeds the next snapshot. The snapshot always becomes the new
// baseline, including when the rate for this cycle is discarded.
//
// A direction whose counter went backwards reports the previous cycle's
// rate. When there is no previous rate to fall back on, Update returns an
// error wrapping model.ErrCounterAnomaly.
func (c *RateCalculator) Update(cur model.CounterSnapshot) (Rates, error) {
	if !c.hasPrev {
		c.prev = cur
		c.hasPrev = true
		return Rates{}, ErrNeedTwoSamples
	}

	prev := c.prev
	c.prev = cur

	rates, err := ComputeRates(prev, cur)
	if err != nil {
		return Rates{}, err
	}

	if disc := rates.Reset; disc.Any() {
		if !c.hasLast {
			return Rates{}, fmt.Errorf("%w: counters decreased with no prior rate", model.ErrCounterAnomaly)
		}
		if disc.RxBytes {
			rates.RxBps = c.last.RxBps
		}
		if disc.TxBytes {
			rates.TxBps = c.last.TxBps
		}
		if disc.RxPackets {
			rates.RxPps = c.last.RxPps
		}
		if disc.TxPackets {
			rates.TxPps = c.last.TxPps
		}
	}

	c.last = rates
	c.hasLast = true
	return rates, nil
}

// Previous returns the stored baseline snapshot.
func (c *RateCalculator) Previous() (model.CounterSnapshot, bool) {
	return c.prev, c.hasPrev
}
