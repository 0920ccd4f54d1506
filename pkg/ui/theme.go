package ui

import (
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Rings
	Unseen  lipgloss.AdaptiveColor
	Partial lipgloss.AdaptiveColor
	Seen    lipgloss.AdaptiveColor

	// Playback
	Progress lipgloss.AdaptiveColor
	Paused   lipgloss.AdaptiveColor
	Error    lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Card     lipgloss.Style
	Header   lipgloss.Style
	Badge    lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		// Dracula / Light Mode equivalent
		Primary:   lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#999999", Dark: "#BFBFBF"}, // Dim
		Muted:     lipgloss.AdaptiveColor{Light: "#BBBBBB", Dark: "#44475A"},

		Unseen:  lipgloss.AdaptiveColor{Light: "#D80073", Dark: "#FF79C6"}, // Pink
		Partial: lipgloss.AdaptiveColor{Light: "#D88000", Dark: "#FFB86C"}, // Orange
		Seen:    lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray

		Progress: lipgloss.AdaptiveColor{Light: "#00A800", Dark: "#50FA7B"}, // Green
		Paused:   lipgloss.AdaptiveColor{Light: "#A8A800", Dark: "#F1FA8C"}, // Yellow
		Error:    lipgloss.AdaptiveColor{Light: "#D80000", Dark: "#FF5555"}, // Red

		Border:    lipgloss.AdaptiveColor{Light: "#DDDDDD", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#EEEEEE", Dark: "#44475A"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Card = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)

	t.Selected = t.Card.
		BorderForeground(t.Primary).
		Background(t.Highlight).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Badge = r.NewStyle().
		Background(t.Paused).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	return t
}

// RingColor returns the ring color for a user given how many of their
// stories have been seen.
func (t Theme) RingColor(seen, total int) lipgloss.AdaptiveColor {
	switch {
	case total > 0 && seen >= total:
		return t.Seen
	case seen > 0:
		return t.Partial
	default:
		return t.Unseen
	}
}

// RingGlyph returns the rail marker for a user.
func (t Theme) RingGlyph(seen, total int) string {
	switch {
	case total > 0 && seen >= total:
		return "○"
	case seen > 0:
		return "◐"
	default:
		return "◉"
	}
}
