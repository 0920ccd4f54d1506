package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/stories_viewer/pkg/catalog"
)

// cardWidth is the width of one rail card, padding included; cardText is
// what is left for content.
const (
	cardWidth = 14
	cardText  = cardWidth - 2
)

// railWindow returns the [start, end) range of users that fit in width,
// keeping cursor visible.
func railWindow(users, cursor, width int) (int, int) {
	perRow := width / (cardWidth + 2)
	if perRow < 1 {
		perRow = 1
	}
	start := 0
	if cursor >= perRow {
		start = cursor - perRow + 1
	}
	end := start + perRow
	if end > users {
		end = users
	}
	return start, end
}

func (m Model) renderRail() string {
	r := m.theme.Renderer
	cat := m.ctrl.Catalog()
	users := cat.Usernames()

	subtext := r.NewStyle().Foreground(m.theme.Subtext)
	header := m.theme.Header.Render("Stories") + "  " +
		subtext.Render(fmt.Sprintf("%d users · %d stories", cat.UserCount(), cat.Total()))
	if m.ctrl.ReloadPending() {
		header += "  " + r.NewStyle().Foreground(m.theme.Paused).Render("reload pending")
	}

	start, end := railWindow(len(users), m.cursor, m.width)
	cards := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		cards = append(cards, m.renderCard(cat, i, users[i]))
	}
	rail := lipgloss.JoinHorizontal(lipgloss.Top, cards...)

	more := ""
	if start > 0 || end < len(users) {
		more = subtext.Render(fmt.Sprintf("%d-%d of %d", start+1, end, len(users)))
	}

	sections := []string{header, "", rail}
	if more != "" {
		sections = append(sections, more)
	}
	sections = append(sections, "", m.renderStatus(), m.help.View(m.keys.ForViewer(false)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderCard(cat *catalog.Catalog, index int, user string) string {
	r := m.theme.Renderer
	stories, _ := cat.StoriesOf(user)
	seen := m.ctrl.SeenCount(user)

	ring := r.NewStyle().
		Foreground(m.theme.RingColor(seen, len(stories))).
		Render(m.theme.RingGlyph(seen, len(stories)))

	firstID := 0
	if len(stories) > 0 {
		firstID = stories[0].ID
	}

	lines := []string{
		ring + " " + RenderInitials(r, user),
		"@" + Truncate(user, cardText-1),
		r.NewStyle().Foreground(m.theme.Subtext).
			Render(fmt.Sprintf("#%d · %d", firstID, len(stories))),
		r.NewStyle().Foreground(m.theme.RingColor(seen, len(stories))).
			Render(RenderSeenBar(seen, len(stories), cardText)),
	}

	style := m.theme.Card
	if index == m.cursor {
		style = m.theme.Selected
	}
	return style.Width(cardWidth).Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus() string {
	if m.statusMsg == "" {
		return ""
	}
	color := m.theme.Subtext
	if m.statusIsError {
		color = m.theme.Error
	}
	return m.theme.Renderer.NewStyle().Foreground(color).Render(Truncate(m.statusMsg, max(m.width, 1)))
}
