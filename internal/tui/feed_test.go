package tui

import (
	"testing"
	"time"

	"github.com/tinytelemetry/netprobe/internal/model"
	"github.com/tinytelemetry/netprobe/internal/receiver"
)

func ptr(v float64) *float64 { return &v }

func received(id string, latency *float64) receiver.Received {
	return receiver.Received{
		Record: model.TelemetryRecord{
			ID:        id,
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Interface: "eth0",
			LatencyMs: latency,
		},
		Format: "json",
		Size:   128,
	}
}

func TestFeedKeepsNewestRecordsUpToLimit(t *testing.T) {
	t.Parallel()

	f := NewFeed(nil, "127.0.0.1:8080", 3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.Add(received(id, nil))
	}

	got := f.Records()
	if len(got) != 3 {
		t.Fatalf("records = %d, want 3", len(got))
	}
	if got[0].Record.ID != "c" || got[2].Record.ID != "e" {
		t.Fatalf("records = %s..%s, want c..e", got[0].Record.ID, got[2].Record.ID)
	}
	if f.total != 5 {
		t.Fatalf("total = %d, want 5", f.total)
	}
	latest, ok := f.Latest()
	if !ok || latest.Record.ID != "e" {
		t.Fatalf("latest = %q (%v), want e", latest.Record.ID, ok)
	}
}

func TestFeedPauseFreezesHistoryButCounts(t *testing.T) {
	t.Parallel()

	f := NewFeed(nil, "", 0)
	f.Add(received("a", nil))
	f.TogglePause()
	f.Add(received("b", nil))

	if len(f.Records()) != 1 {
		t.Fatalf("records while paused = %d, want 1", len(f.Records()))
	}
	if f.total != 2 || f.byFormat["json"] != 2 {
		t.Fatalf("total = %d json = %d, want 2 and 2", f.total, f.byFormat["json"])
	}

	f.TogglePause()
	f.Add(received("c", nil))
	if len(f.Records()) != 2 {
		t.Fatalf("records after resume = %d, want 2", len(f.Records()))
	}
}

func TestFeedLatencyHistoryMarksMissingValues(t *testing.T) {
	t.Parallel()

	f := NewFeed(nil, "", 10)
	f.Add(received("a", ptr(10)))
	f.Add(received("b", nil))
	f.Add(received("c", ptr(30)))

	values, present := f.LatencyHistory()
	if len(values) != 3 {
		t.Fatalf("values = %d, want 3", len(values))
	}
	if !present[0] || present[1] || !present[2] {
		t.Fatalf("present = %v, want [true false true]", present)
	}
	if values[0] != 10 || values[1] != 0 || values[2] != 30 {
		t.Fatalf("values = %v, want [10 0 30]", values)
	}
}

func TestFeedNextReportsClosedChannel(t *testing.T) {
	t.Parallel()

	ch := make(chan receiver.Received, 1)
	ch <- received("a", nil)
	close(ch)
	f := NewFeed(ch, "", 0)

	if msg, ok := f.Next()().(RecordMsg); !ok || msg.Record.ID != "a" {
		t.Fatalf("first message = %#v, want RecordMsg a", msg)
	}
	if _, ok := f.Next()().(FeedClosedMsg); !ok {
		t.Fatal("second message is not FeedClosedMsg")
	}
}
