package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpPage is one page of the help overlay.
type HelpPage struct {
	ID      string
	Title   string
	Content string // Markdown content
}

// HelpModel manages the help overlay state.
type HelpModel struct {
	pages        []HelpPage
	currentPage  int
	scrollOffset int
	width        int
	height       int
	theme        Theme

	markdownRenderer *MarkdownRenderer
	shouldClose      bool
}

// NewHelpModel creates a help overlay with the built-in pages.
func NewHelpModel(theme Theme) HelpModel {
	return HelpModel{
		pages:            defaultHelpPages(),
		width:            80,
		height:           24,
		theme:            theme,
		markdownRenderer: NewMarkdownRendererWithTheme(74, theme),
	}
}

// Update handles keyboard input for the overlay.
func (m HelpModel) Update(msg tea.Msg) (HelpModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "esc", "q", "?":
		m.shouldClose = true
	case "right", "l", "n", " ", "tab":
		m.NextPage()
	case "left", "h", "p", "shift+tab":
		m.PrevPage()
	case "j", "down":
		m.scrollOffset++
	case "k", "up":
		if m.scrollOffset > 0 {
			m.scrollOffset--
		}
	case "g", "home":
		m.scrollOffset = 0
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.JumpToPage(int(keyMsg.String()[0]-'0') - 1)
	}
	return m, nil
}

// View renders the overlay.
func (m HelpModel) View() string {
	if len(m.pages) == 0 {
		return ""
	}
	page := m.pages[m.currentPage]
	r := m.theme.Renderer

	contentWidth := m.width - 6
	if contentWidth < 30 {
		contentWidth = 30
	}

	var b strings.Builder

	titleStyle := r.NewStyle().Bold(true).Foreground(m.theme.Primary)
	counter := r.NewStyle().Foreground(m.theme.Subtext).
		Render(fmt.Sprintf("[%d/%d]", m.currentPage+1, len(m.pages)))
	b.WriteString(titleStyle.Render("Stories Viewer Help") + "  " + counter)
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(m.theme.Border).Render(strings.Repeat("─", contentWidth)))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render(page.Title))
	b.WriteString("\n\n")
	b.WriteString(m.renderContent(page))
	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())

	modalStyle := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.Primary).
		Padding(1, 2).
		Width(m.width).
		MaxHeight(m.height)

	return modalStyle.Render(b.String())
}

// renderContent renders the page markdown and applies the scroll offset.
func (m HelpModel) renderContent(page HelpPage) string {
	content := page.Content
	if m.markdownRenderer != nil {
		if rendered, err := m.markdownRenderer.Render(page.Content); err == nil {
			content = rendered
		}
	}

	lines := strings.Split(content, "\n")
	visible := m.height - 10
	if visible < 5 {
		visible = 5
	}
	offset := m.scrollOffset
	if maxOffset := len(lines) - visible; offset > maxOffset {
		offset = maxOffset
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + visible
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[offset:end], "\n")
}

func (m HelpModel) renderFooter() string {
	r := m.theme.Renderer
	keyStyle := r.NewStyle().Bold(true).Foreground(m.theme.Primary)
	descStyle := r.NewStyle().Foreground(m.theme.Subtext)

	hints := []string{
		keyStyle.Render("←/→") + descStyle.Render(" pages"),
		keyStyle.Render("j/k") + descStyle.Render(" scroll"),
		keyStyle.Render("esc") + descStyle.Render(" close"),
	}
	return strings.Join(hints, descStyle.Render(" │ "))
}

// NextPage advances to the next page.
func (m *HelpModel) NextPage() {
	if m.currentPage < len(m.pages)-1 {
		m.currentPage++
		m.scrollOffset = 0
	}
}

// PrevPage goes to the previous page.
func (m *HelpModel) PrevPage() {
	if m.currentPage > 0 {
		m.currentPage--
		m.scrollOffset = 0
	}
}

// JumpToPage jumps to a specific page index.
func (m *HelpModel) JumpToPage(index int) {
	if index >= 0 && index < len(m.pages) {
		m.currentPage = index
		m.scrollOffset = 0
	}
}

// SetSize sets the overlay dimensions and updates the markdown renderer.
func (m *HelpModel) SetSize(width, height int) {
	if width > 90 {
		width = 90
	}
	m.width = width
	m.height = height

	contentWidth := width - 6
	if contentWidth < 30 {
		contentWidth = 30
	}
	if m.markdownRenderer != nil {
		m.markdownRenderer.SetWidthWithTheme(contentWidth, m.theme)
	}
}

// CurrentPageID returns the ID of the current page.
func (m HelpModel) CurrentPageID() string {
	if m.currentPage >= 0 && m.currentPage < len(m.pages) {
		return m.pages[m.currentPage].ID
	}
	return ""
}

// ShouldClose returns true if the user asked to close the overlay.
func (m HelpModel) ShouldClose() bool {
	return m.shouldClose
}

// ResetClose resets the close flag (call after handling close).
func (m *HelpModel) ResetClose() {
	m.shouldClose = false
	m.currentPage = 0
	m.scrollOffset = 0
}

// CenterHelp returns the overlay centered in the terminal.
func (m HelpModel) CenterHelp(termWidth, termHeight int) string {
	return lipgloss.Place(termWidth, termHeight, lipgloss.Center, lipgloss.Center, m.View())
}

func defaultHelpPages() []HelpPage {
	return []HelpPage{
		{ID: "keys", Title: "Keys", Content: helpKeysContent},
		{ID: "gestures", Title: "Mouse and Focus", Content: helpGesturesContent},
		{ID: "playback", Title: "Playback", Content: helpPlaybackContent},
		{ID: "feeds", Title: "Feeds", Content: helpFeedsContent},
	}
}

const helpKeysContent = `
## Rail

| Key | Action |
|-----|--------|
| ← / h | previous user |
| → / l | next user |
| enter | open the selected user's stories |
| r | reload feeds |
| ? | this help |
| q | quit |

## Viewer

| Key | Action |
|-----|--------|
| ← / h | previous story |
| → / l / space | next story |
| p | pause or resume |
| y | copy the image reference |
| esc | close the viewer |
`

const helpGesturesContent = `
- **Tap** the left third of the screen to go back, anywhere else to go forward.
- **Press and hold** for 300ms to pause. Releasing resumes where you left off.
- Switching away from the terminal pauses playback; coming back resumes it.
`

const helpPlaybackContent = `
Each story is shown for a fixed time (5s by default) and then the viewer
moves on. After a user's last story it continues with the next user, and
after the very last story the viewer closes.

Going back from a user's first story lands on the **last** story of the
previous user. Any navigation gives the new story a full window.

Stories whose image cannot be found are skipped when
` + "`playback.skip_unavailable`" + ` is on.
`

const helpFeedsContent = `
Feeds are read from ` + "`stories.json`" + `, ` + "`stories.jsonl`" + ` or
` + "`stories.yaml`" + `. Several feeds can be combined with repeated
` + "`--feed`" + ` flags; users keep the order in which they first appear.

When a feed file changes on disk it is reloaded. While the viewer is open the
new stories wait until it closes.

If nothing can be loaded, three placeholder stories are shown instead.
`
