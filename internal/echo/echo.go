// Package echo sends ICMP echo requests.
package echo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ping/ping"
	"github.com/tinytelemetry/netprobe/internal/model"
)

// Pinger implements model.Pinger with one ICMP echo request per call.
type Pinger struct {
	privileged bool
}

// NewPinger returns a Pinger. Privileged pingers use raw sockets and need
// CAP_NET_RAW; unprivileged ones use datagram ICMP sockets, which on Linux
// requires net.ipv4.ping_group_range to cover the process group.
func NewPinger(privileged bool) *Pinger {
	return &Pinger{privileged: privileged}
}

// Ping returns the round-trip time of a single echo request. A request
// without a reply inside timeout returns an error wrapping
// model.ErrProbeTimeout.
func (p *Pinger) Ping(ctx context.Context, target string, timeout time.Duration) (time.Duration, error) {
	if timeout <= 0 {
		return 0, fmt.Errorf("%w: ping timeout must be > 0", model.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrProbeTimeout, err)
	}

	pr, err := ping.NewPinger(target)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", target, err)
	}
	pr.Count = 1
	pr.Timeout = timeout
	pr.SetPrivileged(p.privileged)

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pr.Stop()
		case <-done:
		}
	}()
	err = pr.Run()
	close(done)
	if err != nil {
		return 0, fmt.Errorf("ping %s: %w", target, err)
	}
	if ctx.Err() != nil {
		return 0, fmt.Errorf("%w: ping %s cancelled", model.ErrProbeTimeout, target)
	}

	stats := pr.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("%w: no reply from %s within %s", model.ErrProbeTimeout, target, timeout)
	}
	return stats.AvgRtt, nil
}
