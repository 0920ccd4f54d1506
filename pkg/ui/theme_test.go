package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestDefaultTheme(t *testing.T) {
	renderer := lipgloss.NewRenderer(nil)
	theme := DefaultTheme(renderer)

	if theme.Renderer != renderer {
		t.Error("DefaultTheme renderer mismatch")
	}
	// Check a few known colors are set (not zero value)
	if isColorEmpty(theme.Primary) {
		t.Error("DefaultTheme Primary color is empty")
	}
	if isColorEmpty(theme.Unseen) {
		t.Error("DefaultTheme Unseen color is empty")
	}
	if isColorEmpty(theme.Paused) {
		t.Error("DefaultTheme Paused color is empty")
	}
}

func isColorEmpty(c lipgloss.AdaptiveColor) bool {
	return c.Light == "" && c.Dark == ""
}

func TestRingColorAndGlyph(t *testing.T) {
	renderer := lipgloss.NewRenderer(nil)
	theme := DefaultTheme(renderer)

	tests := []struct {
		seen, total int
		wantColor   lipgloss.AdaptiveColor
		wantGlyph   string
	}{
		{0, 3, theme.Unseen, "◉"},
		{1, 3, theme.Partial, "◐"},
		{3, 3, theme.Seen, "○"},
		{4, 3, theme.Seen, "○"},
		{0, 0, theme.Unseen, "◉"},
	}

	for _, tt := range tests {
		if got := theme.RingColor(tt.seen, tt.total); got != tt.wantColor {
			t.Errorf("RingColor(%d, %d) = %v, want %v", tt.seen, tt.total, got, tt.wantColor)
		}
		if got := theme.RingGlyph(tt.seen, tt.total); got != tt.wantGlyph {
			t.Errorf("RingGlyph(%d, %d) = %q, want %q", tt.seen, tt.total, got, tt.wantGlyph)
		}
	}
}
