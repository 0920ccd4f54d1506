package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
	"github.com/Dicklesworthstone/stories_viewer/pkg/playback"
)

// renderViewer draws the full screen viewer for the active story.
func (m Model) renderViewer(story model.StoryRecord, st playback.State) string {
	r := m.theme.Renderer
	cat := m.ctrl.Catalog()
	user, _ := cat.UserAt(st.UserIndex)
	count := cat.StoryCount(st.UserIndex)

	inner := m.width - 2
	if inner < 10 {
		inner = 10
	}

	segments := RenderSegments(count, st.StoryIndex, st.Progress(), inner, m.theme)

	head := RenderInitials(r, user) + " " +
		r.NewStyle().Bold(true).Render("@"+Truncate(user, inner/2)) + "  " +
		r.NewStyle().Foreground(m.theme.Subtext).Render(fmt.Sprintf("%d/%d", st.StoryIndex+1, count))
	if st.Phase == playback.PhasePaused {
		head += "  " + m.theme.Badge.Render("PAUSED")
	}

	body := lipgloss.JoinVertical(lipgloss.Center,
		r.NewStyle().Bold(true).Foreground(m.theme.Primary).Render(story.Label()),
		"",
		r.NewStyle().Foreground(m.theme.Subtext).Render(Truncate(story.Image, inner-4)),
		"",
		r.NewStyle().Foreground(m.theme.Secondary).Render(fmt.Sprintf("%.1fs", st.Remaining.Seconds())),
	)

	footer := lipgloss.JoinVertical(lipgloss.Left, m.renderStatus(), m.help.View(m.keys.ForViewer(true)))

	bodyHeight := m.height - lipgloss.Height(segments) - lipgloss.Height(head) - lipgloss.Height(footer) - 2
	if bodyHeight < lipgloss.Height(body) {
		bodyHeight = lipgloss.Height(body)
	}
	placed := lipgloss.Place(inner, bodyHeight, lipgloss.Center, lipgloss.Center, body)

	return r.NewStyle().Padding(0, 1).Render(
		lipgloss.JoinVertical(lipgloss.Left, segments, head, "", placed, footer),
	)
}
