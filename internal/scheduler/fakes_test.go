package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// fire delivers a tick unless one is already pending.
func (f *fakeTicker) fire(now time.Time) {
	select {
	case f.c <- now:
	default:
	}
}

type fakeTickers struct {
	mu      sync.Mutex
	tickers map[time.Duration][]*fakeTicker
}

func newFakeTickers() *fakeTickers {
	return &fakeTickers{tickers: make(map[time.Duration][]*fakeTicker)}
}

func (f *fakeTickers) New(d time.Duration) Ticker {
	t := &fakeTicker{c: make(chan time.Time, 1)}
	f.mu.Lock()
	f.tickers[d] = append(f.tickers[d], t)
	f.mu.Unlock()
	return t
}

// wait returns the first ticker created for d, polling until it exists.
func (f *fakeTickers) wait(t *testing.T, d time.Duration) *fakeTicker {
	t.Helper()
	var got *fakeTicker
	waitFor(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.tickers[d]) > 0 {
			got = f.tickers[d][0]
			return true
		}
		return false
	})
	return got
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

type fakeProbe struct {
	name  string
	kind  model.MetricKind
	calls atomic.Int64
	fn    func(ctx context.Context, call int64) (model.MetricSample, error)
}

func (p *fakeProbe) Name() string           { return p.name }
func (p *fakeProbe) Kind() model.MetricKind { return p.kind }

func (p *fakeProbe) Measure(ctx context.Context) (model.MetricSample, error) {
	n := p.calls.Add(1)
	return p.fn(ctx, n)
}

func constantProbe(name string, kind model.MetricKind, value float64) *fakeProbe {
	return &fakeProbe{name: name, kind: kind, fn: func(context.Context, int64) (model.MetricSample, error) {
		return model.MetricSample{Kind: kind, Value: value, Valid: true}, nil
	}}
}

type captureLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *captureLogger) LogError(_ string, err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *captureLogger) LogMetric(model.TelemetryRecord) {}

func (l *captureLogger) errors() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}
