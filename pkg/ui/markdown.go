package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer renders help pages with glamour, rebuilding the
// underlying renderer only when the width changes.
type MarkdownRenderer struct {
	width    int
	style    string
	renderer *glamour.TermRenderer
}

// NewMarkdownRendererWithTheme creates a renderer whose style follows the
// theme's background.
func NewMarkdownRendererWithTheme(width int, theme Theme) *MarkdownRenderer {
	m := &MarkdownRenderer{}
	m.SetWidthWithTheme(width, theme)
	return m
}

// SetWidthWithTheme updates the wrap width.
func (m *MarkdownRenderer) SetWidthWithTheme(width int, theme Theme) {
	style := "dark"
	if theme.Renderer != nil && !theme.Renderer.HasDarkBackground() {
		style = "light"
	}
	if width == m.width && style == m.style && m.renderer != nil {
		return
	}
	m.width, m.style = width, style

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.renderer = nil
		return
	}
	m.renderer = r
}

// Render returns the rendered markdown, or the source unchanged when no
// renderer could be built.
func (m *MarkdownRenderer) Render(md string) (string, error) {
	if m.renderer == nil {
		return md, nil
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}
