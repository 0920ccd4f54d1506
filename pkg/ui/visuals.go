package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// SegmentFill returns the fill of segment i when story active of count is
// showing with the given fraction: completed segments are full, the active
// one is proportional, future ones are empty.
func SegmentFill(i, active int, fraction float64) float64 {
	switch {
	case i < active:
		return 1
	case i > active:
		return 0
	}
	if math.IsNaN(fraction) || fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}

// RenderSegments draws one progress segment per story, separated by a
// single space, fitting width.
func RenderSegments(count, active int, fraction float64, width int, t Theme) string {
	if count <= 0 || width <= 0 {
		return ""
	}
	gaps := count - 1
	segWidth := (width - gaps) / count
	if segWidth < 1 {
		segWidth = 1
	}

	bar := progress.New(
		progress.WithSolidFill(t.Progress.Dark),
		progress.WithoutPercentage(),
		progress.WithWidth(segWidth),
	)
	bar.Full = '━'
	bar.Empty = '━'
	bar.EmptyColor = t.Muted.Dark
	if !t.Renderer.HasDarkBackground() {
		bar.FullColor = t.Progress.Light
		bar.EmptyColor = t.Muted.Light
	}

	parts := make([]string, count)
	for i := range count {
		parts[i] = bar.ViewAs(SegmentFill(i, active, fraction))
	}
	return strings.Join(parts, " ")
}

// seenEighths are left-aligned partial blocks, one to eight eighths wide.
var seenEighths = []string{"▏", "▎", "▍", "▌", "▋", "▊", "▉", "█"}

// RenderSeenBar draws seen out of total as a bar exactly width cells wide.
// Any seen story shows at least one eighth, and the bar is only full when
// every story has been seen.
func RenderSeenBar(seen, total, width int) string {
	if width <= 0 {
		return ""
	}
	if total <= 0 || seen <= 0 {
		return strings.Repeat(" ", width)
	}
	if seen >= total {
		return strings.Repeat("█", width)
	}

	eighths := seen * width * 8 / total
	if eighths == 0 {
		eighths = 1
	}
	if eighths >= width*8 {
		eighths = width*8 - 1
	}

	full, part := eighths/8, eighths%8
	var sb strings.Builder
	sb.WriteString(strings.Repeat("█", full))
	cells := full
	if part > 0 {
		sb.WriteString(seenEighths[part-1])
		cells++
	}
	sb.WriteString(strings.Repeat(" ", width-cells))
	return sb.String()
}

// Truncate shortens s to at most width terminal cells, marking the cut
// with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// UserColors gives each username a stable accent color.
var UserColors = []lipgloss.Color{
	lipgloss.Color("#FF6B6B"), // Coral red
	lipgloss.Color("#4ECDC4"), // Teal
	lipgloss.Color("#45B7D1"), // Sky blue
	lipgloss.Color("#96CEB4"), // Sage green
	lipgloss.Color("#DDA0DD"), // Plum
	lipgloss.Color("#F7DC6F"), // Gold
	lipgloss.Color("#BB8FCE"), // Lavender
	lipgloss.Color("#85C1E9"), // Light blue
}

// GetUserColor returns a consistent color for a username based on hash
func GetUserColor(name string) lipgloss.Color {
	if name == "" {
		return lipgloss.Color("#6272A4")
	}
	hash := 0
	for _, c := range name {
		hash = (hash*31 + int(c)) % len(UserColors)
	}
	if hash < 0 {
		hash = -hash
	}
	return UserColors[hash%len(UserColors)]
}

// RenderInitials creates a compact colored avatar from a username
// Example: "alice" -> "AL"
func RenderInitials(r *lipgloss.Renderer, name string) string {
	display := strings.ToUpper(name)
	runes := []rune(display)
	if len(runes) > 2 {
		display = string(runes[:2])
	}
	if display == "" {
		display = "?"
	}
	return r.NewStyle().
		Foreground(GetUserColor(name)).
		Bold(true).
		Render(display)
}
