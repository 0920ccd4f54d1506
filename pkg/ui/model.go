// Package ui is the bubbletea view layer: a rail of users and a full screen
// story viewer driven by a session.Controller.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Dicklesworthstone/stories_viewer/pkg/gesture"
	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
	"github.com/Dicklesworthstone/stories_viewer/pkg/playback"
	"github.com/Dicklesworthstone/stories_viewer/pkg/session"
	"github.com/Dicklesworthstone/stories_viewer/pkg/watcher"
)

// frameInterval is how often the progress segments are redrawn while a
// story is running.
const frameInterval = 100 * time.Millisecond

// PlaybackMsg wraps a notification from the player.
type PlaybackMsg struct {
	Event playback.Event
}

// FileChangedMsg is sent when a watched feed changes on disk
type FileChangedMsg struct{}

// ReloadedMsg carries the result of reloading the feeds.
type ReloadedMsg struct {
	Records []model.StoryRecord
	Err     error
}

type holdMsg struct{ token uint64 }

type frameMsg time.Time

type openUserMsg struct{ username string }

// ReloadFunc loads the feeds again.
type ReloadFunc func(ctx context.Context) ([]model.StoryRecord, error)

// WaitForEventCmd returns a command that delivers the next player event.
func WaitForEventCmd(s *playback.EventStream) tea.Cmd {
	return func() tea.Msg {
		return PlaybackMsg{Event: <-s.Events()}
	}
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

func frameCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Options configures NewModel.
type Options struct {
	// Watcher triggers reloads; optional.
	Watcher *watcher.Watcher
	// Reload is called on file changes and on the reload key; optional.
	Reload ReloadFunc
	// HoldThreshold is the press length that pauses (300ms if zero).
	HoldThreshold time.Duration
	// StartUser opens the viewer at this user as soon as the program starts.
	StartUser string
	Logger    *slog.Logger
	Renderer  *lipgloss.Renderer
	// Clipboard replaces the system clipboard, mainly for tests.
	Clipboard func(string) error
}

// Model is the main bubbletea model
type Model struct {
	ctrl        *session.Controller
	stream      *playback.EventStream
	unsubscribe func()

	theme    Theme
	keys     KeyMap
	help     help.Model
	helpView HelpModel
	showHelp bool

	hold      *gesture.HoldTracker
	watcher   *watcher.Watcher
	reload    ReloadFunc
	clipboard func(string) error
	logger    *slog.Logger
	startUser string

	cursor        int
	width         int
	height        int
	ready         bool
	animating     bool
	dropped       int64
	statusMsg     string
	statusIsError bool
}

// NewModel creates the view over ctrl and subscribes to its player.
func NewModel(ctrl *session.Controller, opts Options) Model {
	renderer := opts.Renderer
	if renderer == nil {
		renderer = lipgloss.DefaultRenderer()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	copyFn := opts.Clipboard
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	theme := DefaultTheme(renderer)
	stream := playback.NewEventStream(64)

	m := Model{
		ctrl:        ctrl,
		stream:      stream,
		unsubscribe: ctrl.Subscribe(stream),
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		helpView:    NewHelpModel(theme),
		hold:        gesture.NewHoldTracker(opts.HoldThreshold),
		watcher:     opts.Watcher,
		reload:      opts.Reload,
		clipboard:   copyFn,
		logger:      logger,
		startUser:   opts.StartUser,
	}
	if ctrl.UsedFallback() {
		m.setStatus("Feed unavailable, showing placeholder stories", true)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{WaitForEventCmd(m.stream)}
	if m.watcher != nil {
		cmds = append(cmds, WatchFileCmd(m.watcher))
	}
	if m.startUser != "" {
		name := m.startUser
		cmds = append(cmds, func() tea.Msg { return openUserMsg{username: name} })
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.helpView.SetSize(msg.Width-4, msg.Height-2)
		return m, nil

	case tea.FocusMsg:
		m.ctrl.SetVisibility(session.Visible)
		return m, nil

	case tea.BlurMsg:
		m.ctrl.SetVisibility(session.Hidden)
		return m, nil

	case PlaybackMsg:
		m.handleEvent(msg.Event)
		m.noteDropped()
		cmds = append(cmds, WaitForEventCmd(m.stream))
		if !m.animating && m.ctrl.State().Phase == playback.PhaseRunning {
			m.animating = true
			cmds = append(cmds, frameCmd())
		}
		return m, tea.Batch(cmds...)

	case frameMsg:
		st := m.ctrl.State()
		if st.Phase != playback.PhaseRunning {
			m.animating = false
			return m, nil
		}
		m.cursor = st.UserIndex
		return m, frameCmd()

	case holdMsg:
		if m.hold.HoldElapsed(msg.token) && m.ctrl.IsOpen() {
			m.logger.Debug("hold detected, pausing")
			m.dispatch(session.IntentPause)
		}
		return m, nil

	case openUserMsg:
		if err := m.ctrl.OpenUser(msg.username); err != nil {
			m.setStatus(err.Error(), true)
		}
		return m, nil

	case FileChangedMsg:
		m.logger.Info("feed changed on disk")
		if m.watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.watcher))
		}
		cmds = append(cmds, m.reloadCmd())
		return m, tea.Batch(cmds...)

	case ReloadedMsg:
		m.applyReload(msg)
		return m, nil

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, m.holdCmd(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// noteDropped logs player events lost because the stream buffer was full.
func (m *Model) noteDropped() {
	d := m.stream.Dropped()
	if d > m.dropped {
		m.logger.Warn("player events dropped", "count", d-m.dropped)
		m.dropped = d
	}
}

// DroppedEvents returns how many player events the view has missed.
func (m Model) DroppedEvents() int64 {
	return m.dropped
}

func (m *Model) handleEvent(e playback.Event) {
	switch e.Kind {
	case playback.EventStoryChanged:
		m.cursor = e.UserIndex
	case playback.EventClosed:
		m.hold.Cancel()
		m.clampCursor()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, m.quit()
	}

	if m.showHelp {
		m.helpView, _ = m.helpView.Update(msg)
		if m.helpView.ShouldClose() {
			m.helpView.ResetClose()
			m.showHelp = false
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Help) {
		m.showHelp = true
		return m, nil
	}

	if m.ctrl.IsOpen() {
		switch {
		case key.Matches(msg, m.keys.Left):
			m.dispatch(session.IntentPrevious)
		case key.Matches(msg, m.keys.Right):
			m.dispatch(session.IntentNext)
		case key.Matches(msg, m.keys.Close):
			m.dispatch(session.IntentClose)
		case key.Matches(msg, m.keys.Pause):
			m.dispatch(session.IntentTogglePause)
		case key.Matches(msg, m.keys.Copy):
			m.copyImage()
		case key.Matches(msg, m.keys.Quit):
			return m, m.quit()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Left):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Right):
		if m.cursor < m.ctrl.Catalog().UserCount()-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Open):
		if err := m.ctrl.Dispatch(session.Intent{Kind: session.IntentOpen, User: m.cursor}); err != nil {
			m.setStatus(err.Error(), true)
		} else {
			m.statusMsg = ""
		}
	case key.Matches(msg, m.keys.Reload):
		return m, m.reloadCmd()
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit()
	}
	return m, nil
}

// handleMouse maps presses and releases to hold and tap gestures.
func (m *Model) handleMouse(msg tea.MouseMsg) {
	if !m.ctrl.IsOpen() {
		return
	}
	if msg.Action != tea.MouseActionRelease {
		return
	}
	r := m.hold.Release()
	switch {
	case r.Resume:
		m.dispatch(session.IntentResume)
	case r.Tap == gesture.ZonePrevious:
		m.dispatch(session.IntentPrevious)
	case r.Tap == gesture.ZoneNext:
		m.dispatch(session.IntentNext)
	}
}

// dispatch sends an intent that cannot fail to the controller.
func (m *Model) dispatch(kind session.IntentKind) {
	if err := m.ctrl.Dispatch(session.Intent{Kind: kind}); err != nil {
		m.logger.Warn("intent rejected", "intent", kind, "error", err)
	}
}

// holdCmd starts tracking a left-button press and schedules the hold check.
func (m Model) holdCmd(msg tea.MouseMsg) tea.Cmd {
	if !m.ctrl.IsOpen() || msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return nil
	}
	token := m.hold.Press(msg.X, m.width)
	return tea.Tick(m.hold.Threshold(), func(time.Time) tea.Msg {
		return holdMsg{token: token}
	})
}

func (m *Model) copyImage() {
	story, _, ok := m.ctrl.Current()
	if !ok {
		return
	}
	if err := m.clipboard(story.Image); err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus("Copied "+story.Image, false)
}

func (m Model) reloadCmd() tea.Cmd {
	if m.reload == nil {
		return nil
	}
	reload := m.reload
	return func() tea.Msg {
		records, err := reload(context.Background())
		return ReloadedMsg{Records: records, Err: err}
	}
}

func (m *Model) applyReload(msg ReloadedMsg) {
	if msg.Err != nil {
		m.logger.Warn("reload failed", "error", msg.Err)
		m.setStatus(fmt.Sprintf("Reload error: %v", msg.Err), true)
		return
	}
	if m.ctrl.Reload(msg.Records) {
		m.clampCursor()
		m.setStatus(fmt.Sprintf("Reloaded %d stories", m.ctrl.Catalog().Total()), false)
		return
	}
	m.setStatus("Feed changed, reloading when the viewer closes", false)
}

func (m *Model) clampCursor() {
	n := m.ctrl.Catalog().UserCount()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) setStatus(msg string, isError bool) {
	m.statusMsg = msg
	m.statusIsError = isError
}

func (m Model) quit() tea.Cmd {
	m.ctrl.Close()
	m.unsubscribe()
	if m.watcher != nil {
		_ = m.watcher.Stop()
	}
	return tea.Quit
}

// Cursor returns the rail position.
func (m Model) Cursor() int {
	return m.cursor
}

// ShowingHelp reports whether the help overlay is visible.
func (m Model) ShowingHelp() bool {
	return m.showHelp
}

// Status returns the status line text and whether it is an error.
func (m Model) Status() (string, bool) {
	return m.statusMsg, m.statusIsError
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.showHelp {
		return m.helpView.CenterHelp(m.width, m.height)
	}
	if story, st, ok := m.ctrl.Current(); ok {
		return m.renderViewer(story, st)
	}
	return m.renderRail()
}
