// Package sender delivers encoded records as single UDP datagrams with
// bounded retry.
package sender

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

// Encoder serializes a record into one payload.
type Encoder interface {
	Encode(rec model.TelemetryRecord) ([]byte, error)
}

// Transport is the part of net.PacketConn the sender writes through.
type Transport interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc acquires a fresh unconnected socket.
type DialFunc func(ctx context.Context) (Transport, error)

// Config holds sender tunables. Zero values select the defaults.
type Config struct {
	RetryAttempts int
	Timeout       time.Duration // per-attempt write deadline and backoff base
	MaxBackoff    time.Duration
	LocalAddr     string // "" = any port on all interfaces
}

// Option customizes a Sender.
type Option func(*Sender)

// WithDialer replaces the UDP socket factory.
func WithDialer(dial DialFunc) Option {
	return func(s *Sender) { s.dial = dial }
}

// WithJitter replaces the backoff jitter source. fn must return a value
// in [0, n).
func WithJitter(fn func(n int64) int64) Option {
	return func(s *Sender) { s.jitter = fn }
}

// Sender owns one UDP socket for the lifetime of the agent.
type Sender struct {
	attempts int
	timeout  time.Duration
	backoff  backoff
	enc      Encoder
	logger   model.Logger
	dial     DialFunc
	jitter   func(n int64) int64

	mu    sync.Mutex
	conn  Transport
	state atomic.Value // model.DeliveryState
}

// New validates conf and returns a sender. Call Open before the first
// Send.
func New(conf Config, enc Encoder, logger model.Logger, opts ...Option) (*Sender, error) {
	if conf.RetryAttempts == 0 {
		conf.RetryAttempts = model.DefaultRetryAttempts
	}
	if conf.Timeout == 0 {
		conf.Timeout = model.DefaultSendTimeout
	}
	if conf.MaxBackoff == 0 {
		conf.MaxBackoff = model.DefaultMaxBackoff
	}
	switch {
	case conf.RetryAttempts < 1:
		return nil, fmt.Errorf("%w: sender: retry attempts must be >= 1", model.ErrConfiguration)
	case conf.Timeout < 0:
		return nil, fmt.Errorf("%w: sender: timeout must be > 0", model.ErrConfiguration)
	case conf.MaxBackoff < conf.Timeout:
		return nil, fmt.Errorf("%w: sender: max backoff %s is below timeout %s", model.ErrConfiguration, conf.MaxBackoff, conf.Timeout)
	case enc == nil:
		return nil, fmt.Errorf("%w: sender: encoder is nil", model.ErrConfiguration)
	}

	s := &Sender{
		attempts: conf.RetryAttempts,
		timeout:  conf.Timeout,
		enc:      enc,
		logger:   logger,
	}
	local := conf.LocalAddr
	if local == "" {
		local = ":0"
	}
	s.dial = func(ctx context.Context) (Transport, error) {
		var lc net.ListenConfig
		return lc.ListenPacket(ctx, "udp", local)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backoff = newBackoff(conf.Timeout, conf.MaxBackoff, s.jitter)
	s.state.Store(model.StateIdle)
	return s, nil
}

// Open acquires the socket.
func (s *Sender) Open(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: open udp socket: %v", model.ErrTransmission, err)
	}
	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Close releases the socket. Later sends fail until Open is called again.
func (s *Sender) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// State returns the state of the current or last Send.
func (s *Sender) State() model.DeliveryState {
	return s.state.Load().(model.DeliveryState)
}

// Send transmits one record to target. Failed local writes are retried
// with backoff up to the configured number of attempts; the record is
// dropped after that and the returned error wraps model.ErrTransmission.
// A broken socket is replaced once per call.
func (s *Sender) Send(ctx context.Context, rec model.TelemetryRecord, target netip.AddrPort) (model.DeliveryReport, error) {
	s.state.Store(model.StateSending)
	report := model.DeliveryReport{RecordID: rec.ID, State: model.StateSending}

	payload, err := s.enc.Encode(rec)
	if err != nil {
		err = fmt.Errorf("%w: encode record %s: %v", model.ErrTransmission, rec.ID, err)
		return s.fail(report, err), err
	}
	if !target.IsValid() {
		err = fmt.Errorf("%w: invalid collector address", model.ErrTransmission)
		return s.fail(report, err), err
	}
	addr := net.UDPAddrFromAddrPort(target)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		err := s.write(payload, addr)
		if isBrokenSocket(err) && !report.Reacquired {
			report.Reacquired = true
			if rerr := s.Open(ctx); rerr != nil {
				err = fmt.Errorf("%v; reacquire: %v", err, rerr)
			} else {
				err = s.write(payload, addr)
			}
		}

		a := model.DeliveryAttempt{RecordID: rec.ID, Attempt: attempt, Outcome: classify(err)}
		if err == nil {
			report.Attempts = append(report.Attempts, a)
			report.State = model.StateSuccess
			report.Bytes = len(payload)
			report.Finished = time.Now()
			s.state.Store(model.StateSuccess)
			return report, nil
		}

		lastErr = err
		a.Err = err.Error()
		if attempt < s.attempts {
			a.Backoff = s.backoff.delay(attempt)
		}
		report.Attempts = append(report.Attempts, a)

		if attempt < s.attempts {
			if err := sleep(ctx, a.Backoff); err != nil {
				lastErr = fmt.Errorf("%v; backoff interrupted: %w", lastErr, err)
				break
			}
		}
	}

	err = fmt.Errorf("%w: record %s dropped after %d attempt(s): %v", model.ErrTransmission, rec.ID, len(report.Attempts), lastErr)
	return s.fail(report, err), err
}

func (s *Sender) fail(report model.DeliveryReport, err error) model.DeliveryReport {
	report.State = model.StateFailed
	report.Finished = time.Now()
	s.state.Store(model.StateFailed)
	if s.logger != nil {
		s.logger.LogError("udp delivery", err)
	}
	return report
}

func (s *Sender) write(payload []byte, addr net.Addr) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	n, err := conn.WriteTo(payload, addr)
	if err != nil {
		return err
	}
	if n != len(payload) {
		return fmt.Errorf("wrote %d of %d bytes: %w", n, len(payload), io.ErrShortWrite)
	}
	return nil
}
