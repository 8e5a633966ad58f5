// Package netcounter reads cumulative interface counters from procfs.
package netcounter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/procfs"
	"github.com/tinytelemetry/netprobe/internal/model"
)

// ProcSource implements model.CounterSource over /proc/net/dev.
type ProcSource struct {
	fs  procfs.FS
	now func() time.Time
}

// NewProcSource opens the proc filesystem at mount. An empty mount uses
// procfs.DefaultMountPoint.
func NewProcSource(mount string) (*ProcSource, error) {
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mount)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", mount, err)
	}
	return &ProcSource{fs: fs, now: time.Now}, nil
}

// ReadCounters returns the counters of iface, timestamped at read time.
func (s *ProcSource) ReadCounters(ctx context.Context, iface string) (model.CounterSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.CounterSnapshot{}, err
	}
	dev, err := s.fs.NetDev()
	if err != nil {
		return model.CounterSnapshot{}, fmt.Errorf("read net/dev: %w", err)
	}
	line, ok := dev[iface]
	if !ok {
		return model.CounterSnapshot{}, fmt.Errorf("interface %q not found", iface)
	}
	return model.CounterSnapshot{
		Timestamp: s.now(),
		RxBytes:   line.RxBytes,
		TxBytes:   line.TxBytes,
		RxPackets: line.RxPackets,
		TxPackets: line.TxPackets,
	}, nil
}

// Interfaces lists the interface names known to the kernel, sorted.
func (s *ProcSource) Interfaces() ([]string, error) {
	dev, err := s.fs.NetDev()
	if err != nil {
		return nil, fmt.Errorf("read net/dev: %w", err)
	}
	names := make([]string, 0, len(dev))
	for name := range dev {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// HasInterface reports whether iface is present.
func (s *ProcSource) HasInterface(iface string) (bool, error) {
	dev, err := s.fs.NetDev()
	if err != nil {
		return false, fmt.Errorf("read net/dev: %w", err)
	}
	_, ok := dev[iface]
	return ok, nil
}
