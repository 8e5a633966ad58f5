package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

const (
	pingEvery   = 30 * time.Second
	netEvery    = 10 * time.Second
	reportEvery = 60 * time.Second
)

func TestStart_RejectsInvalidEntries(t *testing.T) {
	t.Parallel()

	probe := constantProbe("latency", model.KindLatency, 1)
	tests := []struct {
		name    string
		entries []Entry
		report  time.Duration
	}{
		{"no entries", nil, reportEvery},
		{"nil probe", []Entry{{Interval: time.Second}}, reportEvery},
		{"zero interval", []Entry{{Probe: probe}}, reportEvery},
		{"negative timeout", []Entry{{Probe: probe, Interval: time.Second, Timeout: -1}}, reportEvery},
		{"zero report interval", []Entry{{Probe: probe, Interval: time.Second}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New(nil, nil, Config{NewTicker: newFakeTickers().New})
			if err := s.Start(context.Background(), tt.entries, tt.report); !errors.Is(err, model.ErrConfiguration) {
				t.Fatalf("Start() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestStart_Twice(t *testing.T) {
	t.Parallel()

	s := New(nil, nil, Config{NewTicker: newFakeTickers().New})
	entries := []Entry{{Probe: constantProbe("latency", model.KindLatency, 1), Interval: pingEvery}}
	if err := s.Start(context.Background(), entries, reportEvery); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	if err := s.Start(context.Background(), entries, reportEvery); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("second Start() error = %v, want ErrConfiguration", err)
	}
}

func TestScheduler_RunsImmediatelyThenOnTick(t *testing.T) {
	t.Parallel()

	tickers := newFakeTickers()
	probe := constantProbe("latency", model.KindLatency, 12.5)
	s := New(nil, nil, Config{NewTicker: tickers.New})
	if err := s.Start(context.Background(), []Entry{{Probe: probe, Interval: pingEvery}}, reportEvery); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return probe.calls.Load() == 1 })
	tickers.wait(t, pingEvery).fire(time.Now())
	waitFor(t, func() bool { return probe.calls.Load() == 2 })

	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Sample == nil || snap[0].Sample.Value != 12.5 {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap[0].Sample.Timestamp.IsZero() {
		t.Fatal("sample timestamp should be filled in")
	}
}

func TestScheduler_SlowProbeDoesNotDelayOthers(t *testing.T) {
	t.Parallel()

	tickers := newFakeTickers()
	release := make(chan struct{})
	slow := &fakeProbe{name: "packet_loss", kind: model.KindPacketLoss, fn: func(ctx context.Context, _ int64) (model.MetricSample, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return model.MetricSample{}, ctx.Err()
	}}
	fast := constantProbe("throughput", model.KindThroughput, 800)

	reports := make(chan []model.SlotStatus, 4)
	report := func(_ context.Context, _ time.Time, slots []model.SlotStatus) { reports <- slots }

	s := New(report, nil, Config{NewTicker: tickers.New})
	entries := []Entry{
		{Probe: slow, Interval: pingEvery},
		{Probe: fast, Interval: netEvery},
	}
	if err := s.Start(context.Background(), entries, reportEvery); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		close(release)
		s.Stop()
	}()

	netTick := tickers.wait(t, netEvery)
	waitFor(t, func() bool { return fast.calls.Load() == 1 })
	netTick.fire(time.Now())
	waitFor(t, func() bool { return fast.calls.Load() == 2 })

	tickers.wait(t, reportEvery).fire(time.Now())
	select {
	case slots := <-reports:
		if slots[0].Sample != nil {
			t.Fatalf("slow probe slot should be empty, got %+v", slots[0].Sample)
		}
		if slots[1].Sample == nil || slots[1].Sample.Value != 800 {
			t.Fatalf("fast probe slot = %+v", slots[1])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("report was blocked by a slow probe")
	}
	if got := slow.calls.Load(); got != 1 {
		t.Fatalf("slow probe invoked %d times while busy, want 1", got)
	}
}

func TestScheduler_ErrorKeepsLastValidSample(t *testing.T) {
	t.Parallel()

	tickers := newFakeTickers()
	logger := &captureLogger{}
	probe := &fakeProbe{name: "latency", kind: model.KindLatency, fn: func(_ context.Context, call int64) (model.MetricSample, error) {
		switch call {
		case 1:
			return model.MetricSample{Value: 21, Valid: true}, nil
		case 2:
			return model.MetricSample{}, errors.New("no route to host")
		default:
			return model.MetricSample{Value: 99, Valid: false}, nil
		}
	}}
	s := New(nil, logger, Config{NewTicker: tickers.New})
	if err := s.Start(context.Background(), []Entry{{Probe: probe, Interval: pingEvery}}, reportEvery); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	tick := tickers.wait(t, pingEvery)
	waitFor(t, func() bool { return probe.calls.Load() == 1 })
	tick.fire(time.Now())
	waitFor(t, func() bool { return s.Snapshot()[0].Errors == 1 })
	tick.fire(time.Now())
	waitFor(t, func() bool { return s.Snapshot()[0].Runs == 3 })

	st := s.Snapshot()[0]
	if st.Sample == nil || st.Sample.Value != 21 {
		t.Fatalf("slot sample = %+v, want the last valid value 21", st.Sample)
	}
	if st.Sample.Kind != model.KindLatency {
		t.Fatalf("slot kind = %q, want latency", st.Sample.Kind)
	}
	if st.LastError == "" {
		t.Fatal("LastError should be recorded")
	}
	if got := len(logger.errors()); got != 1 {
		t.Fatalf("logged %d errors, want 1", got)
	}
}

func TestScheduler_TimeoutIsCountedAsError(t *testing.T) {
	t.Parallel()

	tickers := newFakeTickers()
	logger := &captureLogger{}
	probe := &fakeProbe{name: "latency", kind: model.KindLatency, fn: func(ctx context.Context, _ int64) (model.MetricSample, error) {
		<-ctx.Done()
		return model.MetricSample{}, ctx.Err()
	}}
	s := New(nil, logger, Config{NewTicker: tickers.New})
	entries := []Entry{{Probe: probe, Interval: pingEvery, Timeout: 10 * time.Millisecond}}
	if err := s.Start(context.Background(), entries, reportEvery); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return len(logger.errors()) == 1 })
	if err := logger.errors()[0]; !errors.Is(err, model.ErrProbeTimeout) {
		t.Fatalf("logged error = %v, want ErrProbeTimeout", err)
	}
	st := s.Snapshot()[0]
	if st.Errors != 1 || st.Sample != nil {
		t.Fatalf("slot = %+v, want one error and no sample", st)
	}
}

func TestScheduler_NoSampleYetIsNotAnError(t *testing.T) {
	t.Parallel()

	logger := &captureLogger{}
	probe := &fakeProbe{name: "throughput", kind: model.KindThroughput, fn: func(context.Context, int64) (model.MetricSample, error) {
		return model.MetricSample{}, model.ErrNoSample
	}}
	s := New(nil, logger, Config{NewTicker: newFakeTickers().New})
	if err := s.Start(context.Background(), []Entry{{Probe: probe, Interval: netEvery}}, reportEvery); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return s.Snapshot()[0].Runs == 1 })
	if st := s.Snapshot()[0]; st.Errors != 0 || len(logger.errors()) != 0 {
		t.Fatalf("ErrNoSample should not count as an error: %+v", st)
	}
}

func TestStop_NoInvocationsAfterStop(t *testing.T) {
	t.Parallel()

	tickers := newFakeTickers()
	probe := constantProbe("latency", model.KindLatency, 1)
	var (
		mu      sync.Mutex
		reports int
	)
	report := func(context.Context, time.Time, []model.SlotStatus) {
		mu.Lock()
		reports++
		mu.Unlock()
	}
	s := New(report, nil, Config{NewTicker: tickers.New})
	if err := s.Start(context.Background(), []Entry{{Probe: probe, Interval: pingEvery}}, reportEvery); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	probeTick := tickers.wait(t, pingEvery)
	reportTick := tickers.wait(t, reportEvery)
	waitFor(t, func() bool { return probe.calls.Load() == 1 })

	s.Stop()
	s.Stop()

	before := probe.calls.Load()
	probeTick.fire(time.Now())
	reportTick.fire(time.Now())
	time.Sleep(20 * time.Millisecond)

	if got := probe.calls.Load(); got != before {
		t.Fatalf("probe invoked after Stop: %d -> %d", before, got)
	}
	mu.Lock()
	defer mu.Unlock()
	if reports != 0 {
		t.Fatalf("report invoked %d times after Stop", reports)
	}
	if !probeTick.stopped.Load() || !reportTick.stopped.Load() {
		t.Fatal("tickers should be stopped")
	}
	if err := s.Start(context.Background(), []Entry{{Probe: probe, Interval: pingEvery}}, reportEvery); err == nil {
		t.Fatal("Start() after Stop should fail")
	}
}

func TestStop_BeforeStart(t *testing.T) {
	t.Parallel()

	s := New(nil, nil)
	s.Stop()
	if snap := s.Snapshot(); snap != nil {
		t.Fatalf("Snapshot() before Start = %v, want nil", snap)
	}
}
