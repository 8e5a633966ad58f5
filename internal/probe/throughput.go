package probe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tinytelemetry/netprobe/internal/model"
)

// ThroughputConfig configures a ThroughputProbe.
type ThroughputConfig struct {
	Name            string
	Interface       string
	Source          model.CounterSource
	LinkCapacityBps float64 // 0 = utilization not reported
}

// ThroughputProbe reports interface receive/transmit rates from
// cumulative counters.
type ThroughputProbe struct {
	cfg ThroughputConfig

	mu   sync.Mutex
	calc RateCalculator
}

// NewThroughputProbe validates cfg and returns a probe with an empty
// counter history.
func NewThroughputProbe(cfg ThroughputConfig) (*ThroughputProbe, error) {
	if strings.TrimSpace(cfg.Interface) == "" {
		return nil, fmt.Errorf("%w: throughput probe: interface is required", model.ErrConfiguration)
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: throughput probe: counter source is nil", model.ErrConfiguration)
	}
	if cfg.LinkCapacityBps < 0 {
		return nil, fmt.Errorf("%w: throughput probe: link capacity must be >= 0", model.ErrConfiguration)
	}
	if cfg.Name == "" {
		cfg.Name = string(model.KindThroughput)
	}
	return &ThroughputProbe{cfg: cfg}, nil
}

func (p *ThroughputProbe) Name() string           { return p.cfg.Name }
func (p *ThroughputProbe) Kind() model.MetricKind { return model.KindThroughput }

// Measure reads the current counters and returns the rates against the
// previous read. The first call only seeds the history and returns
// ErrNeedTwoSamples.
func (p *ThroughputProbe) Measure(ctx context.Context) (model.MetricSample, error) {
	snap, err := p.cfg.Source.ReadCounters(ctx, p.cfg.Interface)
	if err != nil {
		return model.MetricSample{}, fmt.Errorf("read counters %s: %w", p.cfg.Interface, err)
	}

	p.mu.Lock()
	rates, err := p.calc.Update(snap)
	p.mu.Unlock()
	if err != nil {
		return model.MetricSample{}, err
	}

	aux := map[string]float64{
		model.AuxTxBps: rates.TxBps,
		model.AuxRxPps: rates.RxPps,
		model.AuxTxPps: rates.TxPps,
	}
	if pct, ok := Utilization(rates.RxBps, p.cfg.LinkCapacityBps); ok {
		aux[model.AuxRxUtilPct] = pct
	}
	if pct, ok := Utilization(rates.TxBps, p.cfg.LinkCapacityBps); ok {
		aux[model.AuxTxUtilPct] = pct
	}

	return model.MetricSample{
		Kind:      model.KindThroughput,
		Value:     rates.RxBps,
		Aux:       aux,
		Timestamp: snap.Timestamp,
		Valid:     true,
	}, nil
}
