package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// RecordsPage lists the retained records, newest first.
type RecordsPage struct {
	feed     *Feed
	keys     KeyMap
	viewport viewport.Model
}

// NewRecordsPage creates the record log over feed.
func NewRecordsPage(feed *Feed) *RecordsPage {
	return &RecordsPage{feed: feed, keys: DefaultKeyMap(), viewport: viewport.New(80, 20)}
}

func (p *RecordsPage) ID() string    { return "records" }
func (p *RecordsPage) Init() tea.Cmd { return nil }

func (p *RecordsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, p.keys.Up):
			p.viewport.ScrollUp(1)
			return nil, nil
		case key.Matches(km, p.keys.Down):
			p.viewport.ScrollDown(1)
			return nil, nil
		}
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return cmd, nil
}

func (p *RecordsPage) View(width, height int) string {
	if width > 0 {
		p.viewport.Width = width
	}
	if height > 4 {
		p.viewport.Height = height - 3
	}
	p.viewport.SetContent(strings.Join(RecordLines(p.feed), "\n"))
	return renderHeader(p.feed, "Records") + "\n\n" + p.viewport.View()
}

// RecordLines renders one summary line per retained record, newest first.
func RecordLines(feed *Feed) []string {
	records := feed.Records()
	lines := make([]string, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		rec := r.Record
		lines = append(lines, fmt.Sprintf("%s  %-5s %-8s lat=%-10s loss=%-8s rx=%-14s tx=%s",
			rec.Timestamp.Format("15:04:05"),
			r.Format,
			rec.Interface,
			formatOptional(rec.LatencyMs, formatMs),
			formatOptional(rec.PacketLossPct, formatPct),
			formatOptional(rec.ThroughputRxBps, FormatBps),
			formatOptional(rec.ThroughputTxBps, FormatBps),
		))
	}
	return lines
}
