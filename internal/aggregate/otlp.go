package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/protobuf/proto"
)

const (
	otlpScope      = "netprobe"
	otlpPrefix     = "netprobe."
	attrService    = "service.name"
	attrInterface  = "net.host.interface"
	attrRecordID   = "netprobe.record.id"
	attrRecordTime = "netprobe.record.timestamp"
)

// OTLPEncoder writes an OTLP MetricsData message with one gauge per
// present field.
type OTLPEncoder struct{}

func (OTLPEncoder) Name() string { return FormatOTLP }

func (OTLPEncoder) Encode(rec model.TelemetryRecord) ([]byte, error) {
	ts := uint64(rec.Timestamp.UnixNano())

	var metrics []*metricspb.Metric
	for _, f := range fields {
		p := *f.ref(&rec)
		if p == nil {
			continue
		}
		metrics = append(metrics, &metricspb.Metric{
			Name: otlpPrefix + f.key,
			Unit: f.unit,
			Data: &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{
				DataPoints: []*metricspb.NumberDataPoint{{
					TimeUnixNano: ts,
					Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: *p},
				}},
			}},
		})
	}

	md := &metricspb.MetricsData{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource: &resourcepb.Resource{Attributes: []*commonpb.KeyValue{
				stringAttr(attrService, otlpScope),
				stringAttr(attrInterface, rec.Interface),
				stringAttr(attrRecordID, rec.ID),
				stringAttr(attrRecordTime, rec.Timestamp.UTC().Format(time.RFC3339Nano)),
			}},
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Scope:   &commonpb.InstrumentationScope{Name: otlpScope},
				Metrics: metrics,
			}},
		}},
	}

	b, err := proto.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode otlp: %w", err)
	}
	return checkSize(b)
}

func stringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

func decodeOTLP(payload []byte) (model.TelemetryRecord, error) {
	var md metricspb.MetricsData
	if err := proto.Unmarshal(payload, &md); err != nil {
		return model.TelemetryRecord{}, fmt.Errorf("decode otlp: %w", err)
	}
	if len(md.GetResourceMetrics()) == 0 {
		return model.TelemetryRecord{}, fmt.Errorf("decode otlp: no resource metrics")
	}
	rm := md.GetResourceMetrics()[0]

	var rec model.TelemetryRecord
	for _, kv := range rm.GetResource().GetAttributes() {
		v := kv.GetValue().GetStringValue()
		switch kv.GetKey() {
		case attrInterface:
			rec.Interface = v
		case attrRecordID:
			rec.ID = v
		case attrRecordTime:
			ts, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return model.TelemetryRecord{}, fmt.Errorf("decode otlp: %s: %w", attrRecordTime, err)
			}
			rec.Timestamp = ts
		}
	}

	for _, sm := range rm.GetScopeMetrics() {
		for _, m := range sm.GetMetrics() {
			f, ok := fieldByKey(strings.TrimPrefix(m.GetName(), otlpPrefix))
			if !ok {
				continue
			}
			points := m.GetGauge().GetDataPoints()
			if len(points) == 0 {
				continue
			}
			*f.ref(&rec) = model.Float(points[0].GetAsDouble())
		}
	}
	return rec, nil
}
