// Package theme holds the lipgloss styles used by the command line output.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/todosync/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// DayHeaderStyle renders the name of a day partition.
var DayHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// IDStyle renders todo ids in listings.
var IDStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Width(6).
	Align(lipgloss.Right)

// TodoStyle is the base style for an open todo.
var TodoStyle = lipgloss.NewStyle().
	PaddingLeft(1)

// DoneStyle renders a completed todo.
var DoneStyle = TodoStyle.
	Foreground(ColorGray).
	Strikethrough(true)

// MutedStyle is used for hints and empty states.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders error messages.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// PanelStyle wraps a block of status output.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// SyncStatusStyle returns a color-coded style for a sync status.
func SyncStatusStyle(s model.SyncStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch s {
	case model.SyncConnected:
		return base.Foreground(ColorGreen)
	case model.SyncConnecting:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// Checkbox returns the marker shown in front of a todo.
func Checkbox(done bool) string {
	if done {
		return lipgloss.NewStyle().Foreground(ColorGreen).Render("[x]")
	}
	return lipgloss.NewStyle().Foreground(ColorBlue).Render("[ ]")
}
