package scheduler

import (
	"maps"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

// slot is the latest-value cell of one probe. Only the probe's own
// goroutine writes it.
type slot struct {
	probe    model.Probe
	name     string
	interval time.Duration
	timeout  time.Duration

	sample  atomic.Pointer[model.MetricSample]
	runs    atomic.Uint64
	errors  atomic.Uint64
	lastErr atomic.Pointer[string]
}

// store publishes a valid sample. Invalid samples are ignored so the slot
// keeps its last good value.
func (sl *slot) store(s model.MetricSample) bool {
	if !s.Valid {
		return false
	}
	if s.Aux != nil {
		s.Aux = maps.Clone(s.Aux)
	}
	sl.sample.Store(&s)
	return true
}

func (sl *slot) fail(err error) {
	sl.errors.Add(1)
	msg := err.Error()
	sl.lastErr.Store(&msg)
}

func (sl *slot) status() model.SlotStatus {
	st := model.SlotStatus{
		Probe:  sl.name,
		Kind:   sl.probe.Kind(),
		Runs:   sl.runs.Load(),
		Errors: sl.errors.Load(),
	}
	if s := sl.sample.Load(); s != nil {
		cp := *s
		if cp.Aux != nil {
			cp.Aux = maps.Clone(cp.Aux)
		}
		st.Sample = &cp
	}
	if msg := sl.lastErr.Load(); msg != nil {
		st.LastError = *msg
	}
	return st
}
