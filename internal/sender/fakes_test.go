package sender

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

type fakeTransport struct {
	mu      sync.Mutex
	err     error
	writes  [][]byte
	closed  bool
	onWrite func(n int) error
}

func (f *fakeTransport) WriteTo(b []byte, _ net.Addr) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, net.ErrClosed
	}
	f.writes = append(f.writes, append([]byte(nil), b...))
	if f.onWrite != nil {
		if err := f.onWrite(len(f.writes)); err != nil {
			return 0, err
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	return len(b), nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// dialSequence hands out transports in order, repeating the last one.
type dialSequence struct {
	mu    sync.Mutex
	next  []*fakeTransport
	dials int
}

func (d *dialSequence) dial(context.Context) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	t := d.next[0]
	if len(d.next) > 1 {
		d.next = d.next[1:]
	}
	return t, nil
}

type staticEncoder struct {
	payload []byte
	err     error
}

func (e staticEncoder) Encode(model.TelemetryRecord) ([]byte, error) { return e.payload, e.err }

type countingLogger struct {
	mu   sync.Mutex
	errs []error
}

func (l *countingLogger) LogError(_ string, err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *countingLogger) LogMetric(model.TelemetryRecord) {}

func (l *countingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errs)
}
