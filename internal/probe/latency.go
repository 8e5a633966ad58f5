package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
	"golang.org/x/sync/errgroup"
)

// LatencyConfig configures a LatencyProbe.
type LatencyConfig struct {
	Name    string
	Targets []string
	Count   int           // echo requests per target and cycle
	Timeout time.Duration // per request
	Pinger  model.Pinger
}

// LatencyProbe reports the mean round-trip time to a set of targets.
type LatencyProbe struct {
	cfg LatencyConfig
}

// NewLatencyProbe validates cfg.
func NewLatencyProbe(cfg LatencyConfig) (*LatencyProbe, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("%w: latency probe: at least one target is required", model.ErrConfiguration)
	}
	for _, t := range cfg.Targets {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: latency probe: empty target", model.ErrConfiguration)
		}
	}
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("%w: latency probe: count must be > 0, got %d", model.ErrConfiguration, cfg.Count)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: latency probe: timeout must be > 0", model.ErrConfiguration)
	}
	if cfg.Pinger == nil {
		return nil, fmt.Errorf("%w: latency probe: pinger is nil", model.ErrConfiguration)
	}
	if cfg.Name == "" {
		cfg.Name = string(model.KindLatency)
	}
	cfg.Targets = append([]string(nil), cfg.Targets...)
	return &LatencyProbe{cfg: cfg}, nil
}

func (p *LatencyProbe) Name() string           { return p.cfg.Name }
func (p *LatencyProbe) Kind() model.MetricKind { return model.KindLatency }

// Measure pings every target Count times, targets in parallel. The value
// is the mean of all successful replies; targets without a single reply
// do not contribute. Timeouts only mark a target unreachable. When no
// target replied at all, a non-timeout ping failure is returned instead
// of ErrProbeTimeout.
func (p *LatencyProbe) Measure(ctx context.Context) (model.MetricSample, error) {
	replies := make([][]time.Duration, len(p.cfg.Targets))
	failures := make([]error, len(p.cfg.Targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range p.cfg.Targets {
		g.Go(func() error {
			for n := 0; n < p.cfg.Count; n++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				rtt, err := p.cfg.Pinger.Ping(gctx, target, p.cfg.Timeout)
				if err != nil {
					if !errors.Is(err, model.ErrProbeTimeout) {
						failures[i] = fmt.Errorf("ping %s: %w", target, err)
					}
					continue
				}
				replies[i] = append(replies[i], rtt)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.MetricSample{}, fmt.Errorf("%w: latency cycle interrupted: %v", model.ErrProbeTimeout, err)
	}
	if err := ctx.Err(); err != nil {
		return model.MetricSample{}, fmt.Errorf("%w: latency cycle interrupted: %v", model.ErrProbeTimeout, err)
	}

	var (
		sum       time.Duration
		count     int
		reachable int
		minRTT    = time.Duration(math.MaxInt64)
		maxRTT    time.Duration
	)
	for _, rtts := range replies {
		if len(rtts) == 0 {
			continue
		}
		reachable++
		for _, rtt := range rtts {
			sum += rtt
			count++
			minRTT = min(minRTT, rtt)
			maxRTT = max(maxRTT, rtt)
		}
	}
	if count == 0 {
		for _, err := range failures {
			if err != nil {
				return model.MetricSample{}, err
			}
		}
		return model.MetricSample{}, fmt.Errorf("%w: no echo replies from %d target(s)", model.ErrProbeTimeout, len(p.cfg.Targets))
	}

	return model.MetricSample{
		Kind:  model.KindLatency,
		Value: durationMs(sum) / float64(count),
		Aux: map[string]float64{
			model.AuxMinMs:            durationMs(minRTT),
			model.AuxMaxMs:            durationMs(maxRTT),
			model.AuxReachableTargets: float64(reachable),
		},
		Timestamp: time.Now(),
		Valid:     true,
	}, nil
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
