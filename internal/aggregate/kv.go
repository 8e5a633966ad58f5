package aggregate

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
)

// KVEncoder writes one key=value pair per line. Absent fields are left
// out.
type KVEncoder struct{}

func (KVEncoder) Name() string { return FormatKV }

func (KVEncoder) Encode(rec model.TelemetryRecord) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "id=%s\n", rec.ID)
	fmt.Fprintf(&buf, "timestamp=%s\n", rec.Timestamp.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&buf, "interface=%s\n", rec.Interface)
	for _, f := range fields {
		if p := *f.ref(&rec); p != nil {
			fmt.Fprintf(&buf, "%s=%s\n", f.key, strconv.FormatFloat(*p, 'g', -1, 64))
		}
	}
	return checkSize(buf.Bytes())
}

func decodeKV(payload []byte) (model.TelemetryRecord, error) {
	var rec model.TelemetryRecord
	sc := bufio.NewScanner(bytes.NewReader(payload))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return model.TelemetryRecord{}, fmt.Errorf("decode kv: line %d: missing '='", line)
		}
		switch key {
		case "id":
			rec.ID = value
		case "interface":
			rec.Interface = value
		case "timestamp":
			ts, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return model.TelemetryRecord{}, fmt.Errorf("decode kv: line %d: %w", line, err)
			}
			rec.Timestamp = ts
		default:
			f, ok := fieldByKey(key)
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return model.TelemetryRecord{}, fmt.Errorf("decode kv: line %d: %s: %w", line, key, err)
			}
			*f.ref(&rec) = model.Float(v)
		}
	}
	if err := sc.Err(); err != nil {
		return model.TelemetryRecord{}, fmt.Errorf("decode kv: %w", err)
	}
	return rec, nil
}
