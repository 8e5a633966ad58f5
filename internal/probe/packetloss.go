package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

// PacketLossConfig configures a PacketLossProbe.
type PacketLossConfig struct {
	Name    string
	Target  string
	Count   int
	Timeout time.Duration
	Pinger  model.Pinger
}

// PacketLossProbe reports the share of echo requests that went
// unanswered, per cycle and cumulatively.
type PacketLossProbe struct {
	cfg PacketLossConfig

	mu       sync.Mutex
	sent     uint64
	received uint64
}

// NewPacketLossProbe validates cfg.
func NewPacketLossProbe(cfg PacketLossConfig) (*PacketLossProbe, error) {
	if strings.TrimSpace(cfg.Target) == "" {
		return nil, fmt.Errorf("%w: packet loss probe: target is required", model.ErrConfiguration)
	}
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("%w: packet loss probe: count must be > 0, got %d", model.ErrConfiguration, cfg.Count)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: packet loss probe: timeout must be > 0", model.ErrConfiguration)
	}
	if cfg.Pinger == nil {
		return nil, fmt.Errorf("%w: packet loss probe: pinger is nil", model.ErrConfiguration)
	}
	if cfg.Name == "" {
		cfg.Name = string(model.KindPacketLoss)
	}
	return &PacketLossProbe{cfg: cfg}, nil
}

func (p *PacketLossProbe) Name() string           { return p.cfg.Name }
func (p *PacketLossProbe) Kind() model.MetricKind { return model.KindPacketLoss }

// Measure sends Count echo requests. Requests that time out count as
// lost; any other ping failure aborts the cycle with an error.
func (p *PacketLossProbe) Measure(ctx context.Context) (model.MetricSample, error) {
	received := 0
	for i := 0; i < p.cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return model.MetricSample{}, fmt.Errorf("%w: packet loss cycle interrupted: %v", model.ErrProbeTimeout, err)
		}
		_, err := p.cfg.Pinger.Ping(ctx, p.cfg.Target, p.cfg.Timeout)
		switch {
		case err == nil:
			received++
		case errors.Is(err, model.ErrProbeTimeout):
		default:
			return model.MetricSample{}, fmt.Errorf("ping %s: %w", p.cfg.Target, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return model.MetricSample{}, fmt.Errorf("%w: packet loss cycle interrupted: %v", model.ErrProbeTimeout, err)
	}

	p.mu.Lock()
	p.sent += uint64(p.cfg.Count)
	p.received += uint64(received)
	longTerm := LossPercent(p.sent, p.received)
	p.mu.Unlock()

	return model.MetricSample{
		Kind:      model.KindPacketLoss,
		Value:     LossPercent(uint64(p.cfg.Count), uint64(received)),
		Aux:       map[string]float64{model.AuxLongTermLossPct: longTerm},
		Timestamp: time.Now(),
		Valid:     true,
	}, nil
}

// ResetStatistics clears the cumulative counters behind the long-term
// loss figure.
func (p *PacketLossProbe) ResetStatistics() {
	p.mu.Lock()
	p.sent = 0
	p.received = 0
	p.mu.Unlock()
}

// Statistics returns the cumulative request and reply counts.
func (p *PacketLossProbe) Statistics() (sent, received uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent, p.received
}

// LossPercent returns the lost share of sent requests in [0,100].
func LossPercent(sent, received uint64) float64 {
	if sent == 0 {
		return 0
	}
	if received > sent {
		received = sent
	}
	return float64(sent-received) / float64(sent) * 100
}
