package tui

import "github.com/charmbracelet/lipgloss"

// Status icons for the worker table.
const (
	iconAvailable = "[●]"
	iconBusy      = "[◐]"
	iconError     = "[✗]"
	iconOffline   = "[○]"
)

// watchStyles holds the lipgloss styles shared by the watch dashboard.
type watchStyles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	available lipgloss.Style
	busy      lipgloss.Style
	errored   lipgloss.Style
	offline   lipgloss.Style
	loadLow   lipgloss.Style
	loadMid   lipgloss.Style
	loadHigh  lipgloss.Style
	event     lipgloss.Style
	eventErr  lipgloss.Style
	dim       lipgloss.Style
	footer    lipgloss.Style
}

func newWatchStyles() watchStyles {
	return watchStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33")), // Blue
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")), // Light gray
		available: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green
		busy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange
		errored: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
		offline: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray
		loadLow: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green
		loadMid: lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")), // Yellow
		loadHigh: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
		event: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")), // Light gray
		eventErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")), // Gray
		footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")), // Dark gray
	}
}

// statusStyle returns the style for a worker status string.
func (s watchStyles) statusStyle(status string) lipgloss.Style {
	switch status {
	case "available":
		return s.available
	case "busy":
		return s.busy
	case "error":
		return s.errored
	default:
		return s.offline
	}
}

// loadStyle colors a load ratio: green under half, yellow under full, red at full.
func (s watchStyles) loadStyle(ratio float64) lipgloss.Style {
	switch {
	case ratio >= 1.0:
		return s.loadHigh
	case ratio >= 0.5:
		return s.loadMid
	default:
		return s.loadLow
	}
}

// statusIcon returns the table icon for a worker status string.
func statusIcon(status string) string {
	switch status {
	case "available":
		return iconAvailable
	case "busy":
		return iconBusy
	case "error":
		return iconError
	default:
		return iconOffline
	}
}
