package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorNavy   = lipgloss.Color("#0B1F3A")
	ColorWhite  = lipgloss.Color("#F5F7FA")
	ColorGreen  = lipgloss.Color("#35DD2F")
	ColorCyan   = lipgloss.Color("#00CAC7")
	ColorAmber  = lipgloss.Color("#FFAA00")
	ColorRed    = lipgloss.Color("#FF4444")
	ColorDimmed = lipgloss.Color("244")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	dimStyle   = lipgloss.NewStyle().Foreground(ColorDimmed)
	tileStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorCyan).
			Padding(0, 1)
	tileLabelStyle = lipgloss.NewStyle().Foreground(ColorDimmed)
	tileValueStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)
	barStyle       = lipgloss.NewStyle().Foreground(ColorCyan).Background(ColorCyan)
	emptyBarStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Background(lipgloss.Color("240"))
)

// lossStyle colours a loss percentage green, amber or red.
func lossStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= 5:
		return tileValueStyle.Foreground(ColorRed)
	case pct > 0:
		return tileValueStyle.Foreground(ColorAmber)
	default:
		return tileValueStyle.Foreground(ColorGreen)
	}
}

// FormatBps renders a bits/sec rate with a decimal SI prefix.
func FormatBps(bps float64) string {
	units := []string{"bit/s", "kbit/s", "Mbit/s", "Gbit/s", "Tbit/s"}
	i := 0
	for bps >= 1000 && i < len(units)-1 {
		bps /= 1000
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f %s", bps, units[i])
	}
	return fmt.Sprintf("%.1f %s", bps, units[i])
}

func formatOptional(v *float64, format func(float64) string) string {
	if v == nil {
		return "n/a"
	}
	return format(*v)
}

func formatMs(v float64) string  { return fmt.Sprintf("%.2f ms", v) }
func formatPct(v float64) string { return fmt.Sprintf("%.1f %%", v) }
