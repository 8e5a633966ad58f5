package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DashboardPage shows the latest values and a latency history chart.
type DashboardPage struct {
	feed *Feed
	keys KeyMap
	help help.Model
}

// NewDashboardPage creates the dashboard over feed.
func NewDashboardPage(feed *Feed) *DashboardPage {
	return &DashboardPage{feed: feed, keys: DefaultKeyMap(), help: help.New()}
}

func (p *DashboardPage) ID() string    { return "dashboard" }
func (p *DashboardPage) Init() tea.Cmd { return nil }

func (p *DashboardPage) Update(tea.Msg) (tea.Cmd, *PageNav) { return nil, nil }

func (p *DashboardPage) View(width, height int) string {
	if width <= 0 {
		width = 80
	}
	var b strings.Builder
	b.WriteString(renderHeader(p.feed, "Dashboard"))
	b.WriteString("\n\n")

	latest, ok := p.feed.Latest()
	if !ok {
		b.WriteString(dimStyle.Render("waiting for records on " + p.feed.listen + " ..."))
	} else {
		rec := latest.Record
		loss := tileValueStyle
		if rec.PacketLossPct != nil {
			loss = lossStyle(*rec.PacketLossPct)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			renderTile("latency", formatOptional(rec.LatencyMs, formatMs), tileValueStyle),
			renderTile("packet loss", formatOptional(rec.PacketLossPct, formatPct), loss),
			renderTile("rx", formatOptional(rec.ThroughputRxBps, FormatBps), tileValueStyle),
			renderTile("tx", formatOptional(rec.ThroughputTxBps, FormatBps), tileValueStyle),
		))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("record %s  interface %s  via %s  at %s",
			rec.ID, rec.Interface, latest.Format, rec.Timestamp.Format("15:04:05"))))
		b.WriteString("\n\n")
		b.WriteString(titleStyle.Render("latency history"))
		b.WriteString("\n")
		b.WriteString(p.renderLatencyChart(width-2, chartHeight(height)))
	}

	b.WriteString("\n\n")
	b.WriteString(p.help.View(p.keys))
	return b.String()
}

func chartHeight(height int) int {
	if height < 24 {
		return 6
	}
	return 10
}

func renderHeader(feed *Feed, page string) string {
	status := fmt.Sprintf("%d records", feed.total)
	if feed.paused {
		status += "  [paused]"
	}
	if feed.closed {
		status += "  [receiver closed]"
	}
	return titleStyle.Render("netprobe-watch") + dimStyle.Render("  "+page+"  "+feed.listen+"  "+status)
}

func renderTile(label, value string, style lipgloss.Style) string {
	return tileStyle.Render(tileLabelStyle.Render(label) + "\n" + style.Render(value))
}

func (p *DashboardPage) renderLatencyChart(width, height int) string {
	if width < 20 {
		width = 20
	}
	values, present := p.feed.LatencyHistory()
	maxBars := width / 2
	start := 0
	if len(values) > maxBars {
		start = len(values) - maxBars
	}

	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	for i := len(values) - start; i < maxBars; i++ {
		bc.Push(barchart.BarData{Values: []barchart.BarValue{{Name: "EMPTY", Value: 0, Style: emptyBarStyle}}})
	}
	for i := start; i < len(values); i++ {
		style := barStyle
		if !present[i] {
			style = emptyBarStyle
		}
		bc.Push(barchart.BarData{Values: []barchart.BarValue{{Name: "latency", Value: values[i], Style: style}}})
	}
	bc.Draw()
	return bc.View()
}
