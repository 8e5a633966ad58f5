package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/netprobe/internal/receiver"
)

// RecordMsg carries one received record into the program.
type RecordMsg struct {
	receiver.Received
}

// FeedClosedMsg is sent once the receiver channel closes.
type FeedClosedMsg struct{}

// Feed keeps the most recent records for the pages to render.
type Feed struct {
	src    <-chan receiver.Received
	listen string
	limit  int

	records  []receiver.Received // oldest first
	total    uint64
	byFormat map[string]uint64
	paused   bool
	closed   bool
}

// NewFeed reads from src and keeps at most limit records.
func NewFeed(src <-chan receiver.Received, listen string, limit int) *Feed {
	if limit <= 0 {
		limit = 120
	}
	return &Feed{
		src:      src,
		listen:   listen,
		limit:    limit,
		byFormat: make(map[string]uint64),
	}
}

// Next waits for the next record.
func (f *Feed) Next() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-f.src
		if !ok {
			return FeedClosedMsg{}
		}
		return RecordMsg{Received: r}
	}
}

// Add counts r and, unless paused, appends it to the history.
func (f *Feed) Add(r receiver.Received) {
	f.total++
	f.byFormat[r.Format]++
	if f.paused {
		return
	}
	f.records = append(f.records, r)
	if over := len(f.records) - f.limit; over > 0 {
		f.records = append(f.records[:0:0], f.records[over:]...)
	}
}

// TogglePause freezes or resumes the history.
func (f *Feed) TogglePause() { f.paused = !f.paused }

// Records returns the retained records, oldest first.
func (f *Feed) Records() []receiver.Received { return f.records }

// Latest returns the newest retained record.
func (f *Feed) Latest() (receiver.Received, bool) {
	if len(f.records) == 0 {
		return receiver.Received{}, false
	}
	return f.records[len(f.records)-1], true
}

// LatencyHistory returns the latency of each retained record. present[i]
// is false when record i carried no latency.
func (f *Feed) LatencyHistory() (values []float64, present []bool) {
	values = make([]float64, len(f.records))
	present = make([]bool, len(f.records))
	for i, r := range f.records {
		if r.Record.LatencyMs != nil {
			values[i] = *r.Record.LatencyMs
			present[i] = true
		}
	}
	return values, present
}
