// Package aggregate builds telemetry records from probe slots and
// serializes them for the wire.
package aggregate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tinytelemetry/netprobe/internal/model"
)

// Aggregator turns slot snapshots into one record per reporting cycle.
type Aggregator struct {
	iface string
	newID func() string
}

// New returns an aggregator stamping records with iface.
func New(iface string) *Aggregator {
	return &Aggregator{iface: iface, newID: uuid.NewString}
}

// Build creates a fresh record timestamped now. Each field comes from the
// slot of the matching kind and stays nil when that slot has no sample.
// When several slots share a kind the newest sample wins.
func (a *Aggregator) Build(now time.Time, slots []model.SlotStatus) (model.TelemetryRecord, error) {
	rec := model.TelemetryRecord{
		ID:        a.newID(),
		Timestamp: now,
		Interface: a.iface,
	}

	newest := make(map[model.MetricKind]*model.MetricSample, len(slots))
	for i := range slots {
		s := slots[i].Sample
		if s == nil || !s.Valid {
			continue
		}
		kind := s.Kind
		if kind == "" {
			kind = slots[i].Kind
		}
		if cur, ok := newest[kind]; ok && !s.Timestamp.After(cur.Timestamp) {
			continue
		}
		newest[kind] = s
	}

	if s := newest[model.KindLatency]; s != nil {
		rec.LatencyMs = model.Float(s.Value)
	}
	if s := newest[model.KindPacketLoss]; s != nil {
		rec.PacketLossPct = model.Float(s.Value)
		rec.LongTermLossPct = auxField(s, model.AuxLongTermLossPct)
	}
	if s := newest[model.KindThroughput]; s != nil {
		rec.ThroughputRxBps = model.Float(s.Value)
		rec.ThroughputTxBps = auxField(s, model.AuxTxBps)
		rec.RxPps = auxField(s, model.AuxRxPps)
		rec.TxPps = auxField(s, model.AuxTxPps)
		rec.RxUtilPct = auxField(s, model.AuxRxUtilPct)
		rec.TxUtilPct = auxField(s, model.AuxTxUtilPct)
	}

	if err := Validate(rec); err != nil {
		return model.TelemetryRecord{}, err
	}
	return rec, nil
}

func auxField(s *model.MetricSample, key string) *float64 {
	if v, ok := s.AuxValue(key); ok {
		return model.Float(v)
	}
	return nil
}

// Validate checks that a record is well formed. Failures wrap
// model.ErrConfiguration.
func Validate(rec model.TelemetryRecord) error {
	if strings.TrimSpace(rec.Interface) == "" {
		return fmt.Errorf("%w: record has no interface name", model.ErrConfiguration)
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: record has no id", model.ErrConfiguration)
	}
	if rec.Timestamp.IsZero() {
		return fmt.Errorf("%w: record %s has no timestamp", model.ErrConfiguration, rec.ID)
	}
	for _, f := range fields {
		p := *f.ref(&rec)
		if p == nil {
			continue
		}
		v := *p
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: record %s: %s is not finite", model.ErrConfiguration, rec.ID, f.key)
		}
		if v < 0 {
			return fmt.Errorf("%w: record %s: %s is negative (%v)", model.ErrConfiguration, rec.ID, f.key, v)
		}
		if strings.HasSuffix(f.key, "loss_pct") && v > 100 {
			return fmt.Errorf("%w: record %s: %s out of range (%v)", model.ErrConfiguration, rec.ID, f.key, v)
		}
	}
	return nil
}
