package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

// scriptedPinger replays a fixed sequence of replies per target. A zero
// duration in the script means the request timed out.
type scriptedPinger struct {
	mu     sync.Mutex
	script map[string][]time.Duration
	calls  map[string]int
	err    error
}

func newScriptedPinger(script map[string][]time.Duration) *scriptedPinger {
	return &scriptedPinger{script: script, calls: make(map[string]int)}
}

func (p *scriptedPinger) Ping(ctx context.Context, target string, _ time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	n := p.calls[target]
	p.calls[target] = n + 1
	replies := p.script[target]
	if n >= len(replies) || replies[n] == 0 {
		return 0, fmt.Errorf("%w: no reply from %s", model.ErrProbeTimeout, target)
	}
	return replies[n], nil
}

func (p *scriptedPinger) Calls(target string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[target]
}

// splitPinger replies for targets in ok and fails every other target with err.
type splitPinger struct {
	ok  map[string]time.Duration
	err error
}

func (p *splitPinger) Ping(_ context.Context, target string, _ time.Duration) (time.Duration, error) {
	if rtt, ok := p.ok[target]; ok {
		return rtt, nil
	}
	return 0, p.err
}

type fakeCounterSource struct {
	mu    sync.Mutex
	snaps []model.CounterSnapshot
	err   error
}

func (s *fakeCounterSource) ReadCounters(_ context.Context, _ string) (model.CounterSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.CounterSnapshot{}, s.err
	}
	if len(s.snaps) == 0 {
		return model.CounterSnapshot{}, fmt.Errorf("no more snapshots")
	}
	snap := s.snaps[0]
	s.snaps = s.snaps[1:]
	return snap, nil
}
