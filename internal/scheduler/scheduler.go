// Package scheduler runs probes on independent cadences and hands slot
// snapshots to a reporting callback on its own cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

// ReportFunc is called on every reporting tick with a copy of all slots.
// ctx is cancelled when the scheduler stops.
type ReportFunc func(ctx context.Context, now time.Time, slots []model.SlotStatus)

// Entry is one scheduled probe.
type Entry struct {
	Probe    model.Probe
	Interval time.Duration
	Timeout  time.Duration // 0 = Interval
}

// Config holds optional scheduler collaborators.
type Config struct {
	NewTicker     TickerFunc
	Recorder      model.Recorder
	ShutdownGrace time.Duration // 0 = largest probe timeout + 1s
	Now           func() time.Time
}

// Scheduler owns one goroutine per probe plus one reporting goroutine.
type Scheduler struct {
	report    ReportFunc
	logger    model.Logger
	recorder  model.Recorder
	newTicker TickerFunc
	now       func() time.Time
	grace     time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	slots   []slot
	wg      sync.WaitGroup
}

// New creates a scheduler. The optional Config overrides tickers, clock,
// recorder and shutdown grace.
func New(report ReportFunc, logger model.Logger, conf ...Config) *Scheduler {
	s := &Scheduler{
		report:    report,
		logger:    logger,
		newTicker: NewRealTicker,
		now:       time.Now,
	}
	if len(conf) > 0 {
		if conf[0].NewTicker != nil {
			s.newTicker = conf[0].NewTicker
		}
		if conf[0].Recorder != nil {
			s.recorder = conf[0].Recorder
		}
		if conf[0].ShutdownGrace > 0 {
			s.grace = conf[0].ShutdownGrace
		}
		if conf[0].Now != nil {
			s.now = conf[0].Now
		}
	}
	return s
}

func validate(entries []Entry, reportInterval time.Duration) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: scheduler: no probes configured", model.ErrConfiguration)
	}
	if reportInterval <= 0 {
		return fmt.Errorf("%w: scheduler: report interval must be > 0", model.ErrConfiguration)
	}
	for i, e := range entries {
		if e.Probe == nil {
			return fmt.Errorf("%w: scheduler: entry %d has no probe", model.ErrConfiguration, i)
		}
		if e.Interval <= 0 {
			return fmt.Errorf("%w: scheduler: probe %s interval must be > 0", model.ErrConfiguration, e.Probe.Name())
		}
		if e.Timeout < 0 {
			return fmt.Errorf("%w: scheduler: probe %s timeout must be >= 0", model.ErrConfiguration, e.Probe.Name())
		}
	}
	return nil
}

// Start launches every probe (each runs once immediately) and the
// reporting loop. It fails on invalid entries or when called twice.
func (s *Scheduler) Start(ctx context.Context, entries []Entry, reportInterval time.Duration) error {
	if err := validate(entries, reportInterval); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return fmt.Errorf("%w: scheduler already started", model.ErrConfiguration)
	}

	s.slots = make([]slot, len(entries))
	var longest time.Duration
	for i, e := range entries {
		timeout := e.Timeout
		if timeout == 0 {
			timeout = e.Interval
		}
		longest = max(longest, timeout)
		sl := &s.slots[i]
		sl.probe = e.Probe
		sl.name = e.Probe.Name()
		sl.interval = e.Interval
		sl.timeout = timeout
	}
	if s.grace == 0 {
		s.grace = longest + time.Second
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	for i := range s.slots {
		s.wg.Add(1)
		go s.runProbe(runCtx, &s.slots[i])
	}
	s.wg.Add(1)
	go s.runReports(runCtx, reportInterval)
	return nil
}

func (s *Scheduler) runProbe(ctx context.Context, sl *slot) {
	defer s.wg.Done()

	s.measure(ctx, sl)

	t := s.newTicker(sl.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if ctx.Err() != nil {
				return
			}
			s.measure(ctx, sl)
		}
	}
}

func (s *Scheduler) measure(ctx context.Context, sl *slot) {
	mctx, cancel := context.WithTimeout(ctx, sl.timeout)
	start := s.now()
	sample, err := sl.probe.Measure(mctx)
	elapsed := s.now().Sub(start)
	overrun := errors.Is(mctx.Err(), context.DeadlineExceeded)
	cancel()

	// stopping: the result of a cancelled run is not recorded
	if ctx.Err() != nil {
		return
	}

	switch {
	case overrun && err == nil:
		err = fmt.Errorf("%w: %s exceeded %s", model.ErrProbeTimeout, sl.name, sl.timeout)
	case overrun && !errors.Is(err, model.ErrProbeTimeout):
		err = fmt.Errorf("%w: %s exceeded %s: %v", model.ErrProbeTimeout, sl.name, sl.timeout, err)
	case err == nil && !sample.Valid:
		err = fmt.Errorf("%w: %s returned an invalid sample", model.ErrNoSample, sl.name)
	}

	sl.runs.Add(1)
	if s.recorder != nil {
		s.recorder.ProbeRun(sl.name, elapsed, err)
	}

	if err != nil {
		if errors.Is(err, model.ErrNoSample) {
			return
		}
		sl.fail(err)
		if s.logger != nil {
			s.logger.LogError("probe "+sl.name, err)
		}
		return
	}

	if sample.Kind == "" {
		sample.Kind = sl.probe.Kind()
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.now()
	}
	sl.store(sample)
}

func (s *Scheduler) runReports(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	t := s.newTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C():
			if ctx.Err() != nil {
				return
			}
			if s.report != nil {
				s.report(ctx, now, s.Snapshot())
			}
		}
	}
}

// Snapshot returns a copy of every slot in entry order. It is nil before
// Start.
func (s *Scheduler) Snapshot() []model.SlotStatus {
	s.mu.Lock()
	slots := s.slots
	s.mu.Unlock()
	if slots == nil {
		return nil
	}

	out := make([]model.SlotStatus, len(slots))
	for i := range slots {
		out[i] = slots[i].status()
	}
	return out
}

// Stop cancels all probes and the reporting loop and waits for them to
// return, at most for the shutdown grace period. It is safe to call more
// than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	grace := s.grace
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		if s.logger != nil {
			s.logger.LogError("scheduler", fmt.Errorf("probes still running after %s shutdown grace", grace))
		}
	}
}
