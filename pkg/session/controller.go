// Package session wires input intents, feed (re)loading and view history to
// the playback state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Dicklesworthstone/stories_viewer/pkg/catalog"
	"github.com/Dicklesworthstone/stories_viewer/pkg/history"
	"github.com/Dicklesworthstone/stories_viewer/pkg/model"
	"github.com/Dicklesworthstone/stories_viewer/pkg/playback"
)

// Recorder stores viewed stories. *history.Store satisfies it.
type Recorder interface {
	RecordView(ctx context.Context, v history.View) error
}

// Visibility of the surface hosting the viewer.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
)

func (v Visibility) String() string {
	if v == Hidden {
		return "hidden"
	}
	return "visible"
}

// Options configures a Controller. The zero value is usable.
type Options struct {
	// Duration is the per-story display time (playback.DefaultDuration if zero).
	Duration time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger

	// History receives a view for every story shown. Nil disables recording.
	History Recorder
	// Seen seeds the seen marks, usually from history.Store.Seen.
	Seen map[string]map[int]bool

	// Probe checks story content after every story change. Nil disables probing.
	Probe ProbeFunc
	// SkipUnavailable advances past stories whose content fails the probe.
	SkipUnavailable bool

	// NewSessionID generates the id recorded with each view (uuid if nil).
	NewSessionID func() string
}

// Controller owns the catalog and the player for one viewer.
type Controller struct {
	player *playback.Player
	clock  clockwork.Clock
	logger *slog.Logger

	history         Recorder
	probe           ProbeFunc
	skipUnavailable bool
	newSessionID    func() string

	mu           sync.Mutex
	catalog      *catalog.Catalog
	usedFallback bool
	pending      *catalog.Catalog
	pendingFB    bool
	sessionID    string
	visibility   Visibility
	seen         map[string]map[int]bool
}

// New builds a controller over records. An empty feed is replaced by the
// fallback feed; see UsedFallback.
func New(records []model.StoryRecord, opts Options) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	newID := opts.NewSessionID
	if newID == nil {
		newID = uuid.NewString
	}

	c := &Controller{
		clock:           clock,
		logger:          logger,
		history:         opts.History,
		probe:           opts.Probe,
		skipUnavailable: opts.SkipUnavailable,
		newSessionID:    newID,
		seen:            make(map[string]map[int]bool),
	}
	for user, ids := range opts.Seen {
		for id, ok := range ids {
			if ok {
				c.markSeenLocked(user, id)
			}
		}
	}

	c.catalog, c.usedFallback = c.buildCatalog(records)
	c.player = playback.NewPlayer(c.catalog, clock, opts.Duration)
	c.player.SetLogger(logger.With("component", "playback"))
	c.player.Subscribe(playback.Funcs{
		OnStoryChanged: c.storyChanged,
		OnClosed:       c.closed,
	})
	return c
}

// buildCatalog groups records, substituting the fallback feed when empty.
func (c *Controller) buildCatalog(records []model.StoryRecord) (*catalog.Catalog, bool) {
	cat, err := catalog.Load(records)
	if err == nil {
		return cat, false
	}
	if errors.Is(err, catalog.ErrEmptyFeed) {
		c.logger.Warn("feed is empty, using fallback stories")
	} else {
		c.logger.Warn("feed rejected, using fallback stories", "error", err)
	}
	cat, _ = catalog.Load(model.FallbackStories())
	return cat, true
}

// Reload replaces the catalog. While a session is open the new catalog is
// held back and applied when the session closes. It reports whether the
// catalog was applied now.
func (c *Controller) Reload(records []model.StoryRecord) bool {
	cat, fallback := c.buildCatalog(records)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.player.SetDeck(cat); err != nil {
		c.pending, c.pendingFB = cat, fallback
		c.logger.Info("reload deferred until session closes", "users", cat.UserCount(), "stories", cat.Total())
		return false
	}
	c.catalog, c.usedFallback = cat, fallback
	c.pending = nil
	c.logger.Info("catalog reloaded", "users", cat.UserCount(), "stories", cat.Total())
	return true
}

// ReloadPending reports whether a reload is waiting for the session to close.
func (c *Controller) ReloadPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Catalog returns the catalog currently driving playback.
func (c *Controller) Catalog() *catalog.Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog
}

// UsedFallback reports whether the fallback feed is being shown.
func (c *Controller) UsedFallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedFallback
}

// Subscribe registers an observer on the player.
func (c *Controller) Subscribe(o playback.Observer) func() {
	return c.player.Subscribe(o)
}

// Open starts a session at userIndex. A rejected index leaves the running
// session and its id untouched.
func (c *Controller) Open(userIndex int) error {
	c.mu.Lock()
	if userIndex < 0 || userIndex >= c.catalog.UserCount() {
		c.mu.Unlock()
		return fmt.Errorf("open session: %w: %d", playback.ErrUserOutOfRange, userIndex)
	}
	c.sessionID = c.newSessionID()
	c.mu.Unlock()

	if err := c.player.Open(userIndex); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// OpenUser starts a session at the named user.
func (c *Controller) OpenUser(username string) error {
	idx, ok := c.Catalog().IndexOf(username)
	if !ok {
		return fmt.Errorf("%w: %s", catalog.ErrUnknownUser, username)
	}
	return c.Open(idx)
}

func (c *Controller) Next()     { c.player.Next() }
func (c *Controller) Previous() { c.player.Previous() }
func (c *Controller) Pause()    { c.player.Pause() }
func (c *Controller) Resume()   { c.player.Resume() }
func (c *Controller) Close()    { c.player.Close() }

// TogglePause pauses a running session and resumes a paused one.
func (c *Controller) TogglePause() {
	if c.player.State().Phase == playback.PhasePaused {
		c.player.Resume()
		return
	}
	c.player.Pause()
}

func (c *Controller) IsOpen() bool { return c.player.IsOpen() }

// State returns the player snapshot.
func (c *Controller) State() playback.State { return c.player.State() }

// SetVisibility pauses when the surface is hidden and resumes when it is
// shown again. Ignored while no session is open.
func (c *Controller) SetVisibility(v Visibility) {
	c.mu.Lock()
	changed := c.visibility != v
	c.visibility = v
	c.mu.Unlock()

	if !changed || !c.player.IsOpen() {
		return
	}
	c.logger.Debug("visibility changed", "visibility", v)
	if v == Hidden {
		c.player.Pause()
	} else {
		c.player.Resume()
	}
}

// Current returns the active story while a session is open.
func (c *Controller) Current() (model.StoryRecord, playback.State, bool) {
	st := c.player.State()
	if st.Phase == playback.PhaseStopped {
		return model.StoryRecord{}, st, false
	}
	story, ok := c.Catalog().Story(st.UserIndex, st.StoryIndex)
	return story, st, ok
}

// SessionID returns the id of the current (or last) session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SeenCount returns how many of username's stories have been viewed.
func (c *Controller) SeenCount(username string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	stories, err := c.catalog.StoriesOf(username)
	if err != nil {
		return 0
	}
	n := 0
	for _, s := range stories {
		if c.seen[username][s.ID] {
			n++
		}
	}
	return n
}

// AllSeen reports whether every story of username has been viewed.
func (c *Controller) AllSeen(username string) bool {
	stories, err := c.Catalog().StoriesOf(username)
	if err != nil {
		return false
	}
	return c.SeenCount(username) == len(stories)
}

// Seen returns a copy of the seen marks.
func (c *Controller) Seen() map[string]map[int]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]map[int]bool, len(c.seen))
	for u, ids := range c.seen {
		out[u] = make(map[int]bool, len(ids))
		for id := range ids {
			out[u][id] = true
		}
	}
	return out
}

func (c *Controller) markSeenLocked(user string, id int) {
	if c.seen[user] == nil {
		c.seen[user] = make(map[int]bool)
	}
	c.seen[user][id] = true
}

// storyChanged skips unavailable content, then marks and records the story
// that is actually shown.
func (c *Controller) storyChanged(userIndex, storyIndex int) {
	c.mu.Lock()
	story, ok := c.catalog.Story(userIndex, storyIndex)
	sessionID := c.sessionID
	c.mu.Unlock()
	if !ok {
		return
	}

	if c.probe != nil {
		if err := c.probe(story.Image); err != nil {
			c.logger.Warn("story content unavailable", "story", story.ID, "user", story.User, "error", err)
			if c.skipUnavailable {
				c.player.Skip(userIndex, storyIndex)
				return
			}
		}
	}

	c.mu.Lock()
	c.markSeenLocked(story.User, story.ID)
	c.mu.Unlock()

	if c.history == nil {
		return
	}
	err := c.history.RecordView(context.Background(), history.View{
		SessionID: sessionID,
		StoryID:   story.ID,
		User:      story.User,
		ViewedAt:  c.clock.Now(),
	})
	if err != nil {
		c.logger.Warn("failed to record view", "story", story.ID, "error", err)
	}
}

// closed applies a reload that arrived while the session was open.
func (c *Controller) closed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	if err := c.player.SetDeck(c.pending); err != nil {
		// reopened before the close notification arrived
		return
	}
	c.catalog, c.usedFallback = c.pending, c.pendingFB
	c.pending = nil
	c.logger.Info("deferred reload applied", "users", c.catalog.UserCount())
}
