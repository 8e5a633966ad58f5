package main

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
	"github.com/tinytelemetry/netprobe/internal/probe"
	"github.com/tinytelemetry/netprobe/internal/scheduler"
)

// probePlugin is a small plugin primitive for wiring probes.
type probePlugin interface {
	Name() string
	Enabled() bool
	Build(deps probeDeps) (scheduler.Entry, error)
}

// probeDeps are the OS-facing collaborators shared by the probes.
type probeDeps struct {
	Pinger   model.Pinger
	Counters model.CounterSource
}

// interfaceLister is implemented by counter sources that can tell whether
// an interface exists.
type interfaceLister interface {
	HasInterface(iface string) (bool, error)
}

func buildProbePlugins(cfg appConfig) []probePlugin {
	return []probePlugin{
		latencyPlugin{cfg: cfg},
		packetLossPlugin{cfg: cfg},
		throughputPlugin{cfg: cfg},
	}
}

// cycleTimeout bounds one ping cycle: count sequential requests plus one
// spare request timeout, never longer than the interval.
func cycleTimeout(count int, perRequest, interval time.Duration) time.Duration {
	d := time.Duration(count+1) * perRequest
	if d > interval {
		return interval
	}
	return d
}

type latencyPlugin struct{ cfg appConfig }

func (p latencyPlugin) Name() string  { return "latency" }
func (p latencyPlugin) Enabled() bool { return p.cfg.LatencyEnabled }

func (p latencyPlugin) Build(deps probeDeps) (scheduler.Entry, error) {
	pr, err := probe.NewLatencyProbe(probe.LatencyConfig{
		Name:    p.Name(),
		Targets: p.cfg.Targets,
		Count:   p.cfg.PingCount,
		Timeout: p.cfg.PingTimeout,
		Pinger:  deps.Pinger,
	})
	if err != nil {
		return scheduler.Entry{}, err
	}
	return scheduler.Entry{
		Probe:    pr,
		Interval: p.cfg.PingInterval,
		Timeout:  cycleTimeout(p.cfg.PingCount, p.cfg.PingTimeout, p.cfg.PingInterval),
	}, nil
}

type packetLossPlugin struct{ cfg appConfig }

func (p packetLossPlugin) Name() string  { return "packet_loss" }
func (p packetLossPlugin) Enabled() bool { return p.cfg.PacketLossEnabled }

func (p packetLossPlugin) Build(deps probeDeps) (scheduler.Entry, error) {
	pr, err := probe.NewPacketLossProbe(probe.PacketLossConfig{
		Name:    p.Name(),
		Target:  p.cfg.Target,
		Count:   p.cfg.PingCount,
		Timeout: p.cfg.PingTimeout,
		Pinger:  deps.Pinger,
	})
	if err != nil {
		return scheduler.Entry{}, err
	}
	return scheduler.Entry{
		Probe:    pr,
		Interval: p.cfg.PingInterval,
		Timeout:  cycleTimeout(p.cfg.PingCount, p.cfg.PingTimeout, p.cfg.PingInterval),
	}, nil
}

type throughputPlugin struct{ cfg appConfig }

func (p throughputPlugin) Name() string  { return "throughput" }
func (p throughputPlugin) Enabled() bool { return p.cfg.ThroughputEnabled }

func (p throughputPlugin) Build(deps probeDeps) (scheduler.Entry, error) {
	if lister, ok := deps.Counters.(interfaceLister); ok {
		found, err := lister.HasInterface(p.cfg.Interface)
		if err != nil {
			return scheduler.Entry{}, fmt.Errorf("listing interfaces: %w", err)
		}
		if !found {
			return scheduler.Entry{}, fmt.Errorf("%w: interface %q not found", model.ErrConfiguration, p.cfg.Interface)
		}
	}
	pr, err := probe.NewThroughputProbe(probe.ThroughputConfig{
		Name:            p.Name(),
		Interface:       p.cfg.Interface,
		Source:          deps.Counters,
		LinkCapacityBps: p.cfg.LinkCapacityBps,
	})
	if err != nil {
		return scheduler.Entry{}, err
	}
	return scheduler.Entry{Probe: pr, Interval: p.cfg.NetworkMonitorInterval}, nil
}

// buildEntries builds every enabled plugin. A probe that fails to build
// stops startup.
func buildEntries(plugins []probePlugin, deps probeDeps) ([]scheduler.Entry, error) {
	entries := make([]scheduler.Entry, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		entry, err := plugin.Build(deps)
		if err != nil {
			return nil, fmt.Errorf("probe %s: %w", plugin.Name(), err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
