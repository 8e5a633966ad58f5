// Package pipeline wires the scheduler, aggregator and sender into one
// reporting loop.
package pipeline

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/netprobe/internal/aggregate"
	"github.com/tinytelemetry/netprobe/internal/model"
	"github.com/tinytelemetry/netprobe/internal/observe"
	"github.com/tinytelemetry/netprobe/internal/scheduler"
	"github.com/tinytelemetry/netprobe/internal/sender"
)

// Config is the immutable runtime configuration of the pipeline.
type Config struct {
	Interface      string
	Collector      netip.AddrPort
	ReportInterval time.Duration
	RetryAttempts  int
	Timeout        time.Duration
	MaxBackoff     time.Duration
	Format         string
	LocalAddr      string
}

// Deps are the pipeline's collaborators. Nil fields get no-op or default
// implementations.
type Deps struct {
	Logger    model.Logger
	Recorder  model.Recorder
	Observers []model.RecordObserver
	NewTicker scheduler.TickerFunc
	Dialer    sender.DialFunc
}

// Pipeline runs one record per reporting tick through build, validate
// and send.
type Pipeline struct {
	cfg     Config
	entries []scheduler.Entry
	logger  model.Logger
	deps    Deps

	agg    *aggregate.Aggregator
	sender *sender.Sender
	sched  *scheduler.Scheduler

	running atomic.Bool
	started atomic.Pointer[time.Time]
	fatal   chan error

	cycles    atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64

	mu           sync.RWMutex
	lastRecord   *model.TelemetryRecord
	lastDelivery *model.DeliveryReport
}

// New validates cfg and builds the pipeline. Validation failures wrap
// model.ErrConfiguration.
func New(cfg Config, entries []scheduler.Entry, deps Deps) (*Pipeline, error) {
	if strings.TrimSpace(cfg.Interface) == "" {
		return nil, fmt.Errorf("%w: interface is required", model.ErrConfiguration)
	}
	if !cfg.Collector.IsValid() || cfg.Collector.Port() == 0 {
		return nil, fmt.Errorf("%w: collector address %q is not a valid ip:port", model.ErrConfiguration, cfg.Collector)
	}
	if cfg.ReportInterval <= 0 {
		return nil, fmt.Errorf("%w: report interval must be > 0", model.ErrConfiguration)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no probes enabled", model.ErrConfiguration)
	}

	enc, err := aggregate.EncoderFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = observe.Nop()
	}

	var opts []sender.Option
	if deps.Dialer != nil {
		opts = append(opts, sender.WithDialer(deps.Dialer))
	}
	snd, err := sender.New(sender.Config{
		RetryAttempts: cfg.RetryAttempts,
		Timeout:       cfg.Timeout,
		MaxBackoff:    cfg.MaxBackoff,
		LocalAddr:     cfg.LocalAddr,
	}, enc, logger, opts...)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:     cfg,
		entries: append([]scheduler.Entry(nil), entries...),
		logger:  logger,
		deps:    deps,
		agg:     aggregate.New(cfg.Interface),
		sender:  snd,
		fatal:   make(chan error, 1),
	}
	p.sched = scheduler.New(p.report, logger, scheduler.Config{
		NewTicker: deps.NewTicker,
		Recorder:  deps.Recorder,
	})
	return p, nil
}

// Run opens the socket, starts the probes and blocks until ctx is done
// (returning nil) or a record fails validation (returning that error).
// The scheduler is stopped and the socket closed on return.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: pipeline already running", model.ErrConfiguration)
	}

	if err := p.sender.Open(ctx); err != nil {
		return err
	}
	defer p.sender.Close()

	now := time.Now()
	p.started.Store(&now)
	if err := p.sched.Start(ctx, p.entries, p.cfg.ReportInterval); err != nil {
		return err
	}
	defer p.sched.Stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-p.fatal:
		return err
	}
}

func (p *Pipeline) report(ctx context.Context, now time.Time, slots []model.SlotStatus) {
	p.cycles.Add(1)

	rec, err := p.agg.Build(now, slots)
	if err != nil {
		p.logger.LogError("aggregate", err)
		select {
		case p.fatal <- err:
		default:
		}
		return
	}

	report, err := p.sender.Send(ctx, rec, p.cfg.Collector)
	if err != nil {
		p.dropped.Add(1)
	} else {
		p.delivered.Add(1)
		p.logger.LogMetric(rec)
	}
	if p.deps.Recorder != nil {
		p.deps.Recorder.Delivery(report)
	}

	p.mu.Lock()
	p.lastRecord = &rec
	p.lastDelivery = &report
	p.mu.Unlock()

	for _, obs := range p.deps.Observers {
		obs.ObserveRecord(rec, report)
	}
}

// Status returns a point-in-time view of the pipeline.
func (p *Pipeline) Status() model.AgentStatus {
	st := model.AgentStatus{
		Interface:   p.cfg.Interface,
		Cycles:      p.cycles.Load(),
		Delivered:   p.delivered.Load(),
		Dropped:     p.dropped.Load(),
		SenderState: p.sender.State(),
		Slots:       p.sched.Snapshot(),
	}
	if t := p.started.Load(); t != nil {
		st.Started = *t
	}

	p.mu.RLock()
	if p.lastRecord != nil {
		rec := *p.lastRecord
		st.LastRecord = &rec
	}
	if p.lastDelivery != nil {
		rep := *p.lastDelivery
		st.LastDelivery = &rep
	}
	p.mu.RUnlock()
	return st
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }
