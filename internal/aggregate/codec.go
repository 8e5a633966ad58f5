package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tinytelemetry/netprobe/internal/model"
)

// Encoder serializes one record into one datagram payload.
type Encoder interface {
	Name() string
	Encode(rec model.TelemetryRecord) ([]byte, error)
}

// Format names accepted by EncoderFor.
const (
	FormatJSON = "json"
	FormatKV   = "kv"
	FormatOTLP = "otlp"
)

// Formats lists the supported wire formats, default first.
func Formats() []string {
	return []string{FormatJSON, FormatKV, FormatOTLP}
}

// EncoderFor returns the encoder for a format name. An empty name selects
// JSON.
func EncoderFor(name string) (Encoder, error) {
	switch name {
	case "", FormatJSON:
		return JSONEncoder{}, nil
	case FormatKV:
		return KVEncoder{}, nil
	case FormatOTLP:
		return OTLPEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %v)", model.ErrConfiguration, name, Formats())
	}
}

func checkSize(b []byte) ([]byte, error) {
	if len(b) > model.MaxDatagramSize {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", model.ErrConfiguration, len(b), model.MaxDatagramSize)
	}
	return b, nil
}

// JSONEncoder writes one JSON object per record.
type JSONEncoder struct{}

func (JSONEncoder) Name() string { return FormatJSON }

func (JSONEncoder) Encode(rec model.TelemetryRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return checkSize(b)
}

// Decode parses a payload in any supported format and reports which one
// it was.
func Decode(payload []byte) (model.TelemetryRecord, string, error) {
	trimmed := bytes.TrimSpace(payload)
	switch {
	case len(trimmed) == 0:
		return model.TelemetryRecord{}, "", fmt.Errorf("empty payload")
	case trimmed[0] == '{':
		var rec model.TelemetryRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return model.TelemetryRecord{}, FormatJSON, fmt.Errorf("decode json: %w", err)
		}
		return rec, FormatJSON, nil
	case bytes.HasPrefix(trimmed, []byte("id=")):
		rec, err := decodeKV(trimmed)
		return rec, FormatKV, err
	default:
		rec, err := decodeOTLP(payload)
		return rec, FormatOTLP, err
	}
}

// PresentFields returns the keys of the non-nil measurements of rec, in
// wire order.
func PresentFields(rec model.TelemetryRecord) []string {
	var keys []string
	for _, f := range fields {
		if *f.ref(&rec) != nil {
			keys = append(keys, f.key)
		}
	}
	return slices.Clip(keys)
}
