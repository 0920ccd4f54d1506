// Package playback implements the story playback state machine: which user
// and story are active, the auto-advance countdown, and how pause/resume and
// navigation compose across the users -> stories hierarchy.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDuration is how long a story is shown before auto-advancing.
const DefaultDuration = 5 * time.Second

var (
	// ErrUserOutOfRange is returned by Open for an index outside the deck.
	ErrUserOutOfRange = errors.New("user index out of range")

	// ErrSessionOpen is returned by SetDeck while a session is open.
	ErrSessionOpen = errors.New("session is open")
)

// Phase is the timer phase of the player.
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseRunning
	PhasePaused
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "stopped"
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Deck is the shape of the catalog the player navigates.
type Deck interface {
	UserCount() int
	StoryCount(userIndex int) int
}

// State is a snapshot of the player.
type State struct {
	Phase      Phase
	UserIndex  int
	StoryIndex int
	// Remaining is the time left in the current story's window. It equals
	// Duration right after any navigation and is frozen while paused.
	Remaining time.Duration
	Duration  time.Duration
}

// Progress returns the shown fraction of the current story in [0, 1].
func (s State) Progress() float64 {
	if s.Duration <= 0 || s.Phase == PhaseStopped {
		return 0
	}
	return 1 - float64(s.Remaining)/float64(s.Duration)
}

type subscription struct {
	id int
	o  Observer
}

// Player is the playback state machine. All mutations are serialized by a
// single mutex; at most one countdown is pending at any time.
type Player struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	deck     Deck
	duration time.Duration
	logger   *slog.Logger

	phase     Phase
	user      int
	story     int
	remaining time.Duration
	// startedAt is the virtual start of the current window, measured against
	// the full duration, so elapsed time is always clock.Since(startedAt).
	startedAt time.Time
	timer     clockwork.Timer
	// gen invalidates countdowns that were cancelled but whose callback is
	// already in flight.
	gen uint64

	subs        []subscription
	nextSubID   int
	pending     []Event
	dispatching bool
}

// NewPlayer creates a stopped player over deck. A non-positive duration
// selects DefaultDuration; a nil clock selects the real clock.
func NewPlayer(deck Deck, clock clockwork.Clock, duration time.Duration) *Player {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Player{
		clock:     clock,
		deck:      deck,
		duration:  duration,
		logger:    slog.New(slog.DiscardHandler),
		remaining: duration,
	}
}

// SetLogger sets the logger used for transition tracing.
func (p *Player) SetLogger(logger *slog.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if logger != nil {
		p.logger = logger
	}
}

// SetDeck swaps the catalog. Only allowed while stopped.
func (p *Player) SetDeck(deck Deck) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase != PhaseStopped {
		return ErrSessionOpen
	}
	p.deck = deck
	return nil
}

// Subscribe registers o for notifications and returns a function that
// removes it again.
func (p *Player) Subscribe(o Observer) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSubID++
	id := p.nextSubID
	p.subs = append(p.subs, subscription{id: id, o: o})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// Open starts a session at the first story of the user at userIndex.
func (p *Player) Open(userIndex int) error {
	p.mu.Lock()
	users := 0
	if p.deck != nil {
		users = p.deck.UserCount()
	}
	if userIndex < 0 || userIndex >= users {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d (deck has %d users)", ErrUserOutOfRange, userIndex, users)
	}
	p.user, p.story = userIndex, 0
	p.logger.Info("session opened", "user", userIndex)
	p.showLocked()
	p.mu.Unlock()

	p.flush()
	return nil
}

// Next moves to the following story, crossing into the next user when the
// current user's stories are exhausted. Past the last story of the last
// user the session closes. No-op while stopped.
func (p *Player) Next() {
	p.mu.Lock()
	if p.phase != PhaseStopped {
		p.advanceLocked()
	}
	p.mu.Unlock()
	p.flush()
}

// Previous moves to the preceding story, crossing back to the last story of
// the previous user. At the very first story it does nothing.
func (p *Player) Previous() {
	p.mu.Lock()
	defer func() {
		p.mu.Unlock()
		p.flush()
	}()

	if p.phase == PhaseStopped {
		return
	}
	switch {
	case p.story > 0:
		p.story--
	case p.user > 0:
		p.user--
		p.story = p.deck.StoryCount(p.user) - 1
	default:
		return
	}
	p.showLocked()
}

// Skip advances exactly like Next, but only if (userIndex, storyIndex) is
// still the active story. It reports whether it moved.
func (p *Player) Skip(userIndex, storyIndex int) bool {
	p.mu.Lock()
	moved := false
	if p.phase != PhaseStopped && p.user == userIndex && p.story == storyIndex {
		p.advanceLocked()
		moved = true
	}
	p.mu.Unlock()
	p.flush()
	return moved
}

// Pause freezes the countdown and banks the remaining time. No-op unless
// running.
func (p *Player) Pause() {
	p.mu.Lock()
	if p.phase == PhaseRunning {
		p.remaining = p.liveRemainingLocked()
		p.cancelLocked()
		p.phase = PhasePaused
		p.logger.Debug("timer paused", "remaining", p.remaining)
		p.emitLocked(Event{Kind: EventTimerPaused, UserIndex: p.user, StoryIndex: p.story, Duration: p.remaining})
	}
	p.mu.Unlock()
	p.flush()
}

// Resume restarts the countdown for the banked remaining time. When nothing
// is banked a fresh full window is granted. No-op unless paused.
func (p *Player) Resume() {
	p.mu.Lock()
	if p.phase == PhasePaused {
		window := p.remaining
		if window <= 0 {
			window = p.duration
		}
		p.phase = PhaseRunning
		p.armLocked(window)
		p.logger.Debug("timer resumed", "window", window)
		p.emitLocked(Event{Kind: EventTimerResumed, UserIndex: p.user, StoryIndex: p.story, Duration: window})
	}
	p.mu.Unlock()
	p.flush()
}

// Close ends the session from any phase.
func (p *Player) Close() {
	p.mu.Lock()
	p.closeLocked()
	p.mu.Unlock()
	p.flush()
}

// IsOpen reports whether a session is in progress.
func (p *Player) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase != PhaseStopped
}

// State returns a snapshot with the live remaining time.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	remaining := p.remaining
	if p.phase == PhaseRunning {
		remaining = p.liveRemainingLocked()
	}
	return State{
		Phase:      p.phase,
		UserIndex:  p.user,
		StoryIndex: p.story,
		Remaining:  remaining,
		Duration:   p.duration,
	}
}

// Duration returns the configured story duration.
func (p *Player) Duration() time.Duration {
	return p.duration
}

func (p *Player) advanceLocked() {
	switch {
	case p.story < p.deck.StoryCount(p.user)-1:
		p.story++
	case p.user < p.deck.UserCount()-1:
		p.user++
		p.story = 0
	default:
		p.logger.Debug("end of stories reached")
		p.closeLocked()
		return
	}
	p.showLocked()
}

// showLocked displays the current cursor with a fresh full window.
func (p *Player) showLocked() {
	p.phase = PhaseRunning
	p.armLocked(p.duration)
	p.logger.Debug("story changed", "user", p.user, "story", p.story)
	p.emitLocked(Event{Kind: EventStoryChanged, UserIndex: p.user, StoryIndex: p.story})
	p.emitLocked(Event{Kind: EventTimerStarted, UserIndex: p.user, StoryIndex: p.story, Duration: p.duration})
}

func (p *Player) closeLocked() {
	wasOpen := p.phase != PhaseStopped
	p.cancelLocked()
	p.phase = PhaseStopped
	p.user, p.story = 0, 0
	p.remaining = p.duration
	if wasOpen {
		p.logger.Info("session closed")
	}
	p.emitLocked(Event{Kind: EventClosed})
}

// armLocked cancels any pending countdown and starts one for window.
func (p *Player) armLocked(window time.Duration) {
	p.cancelLocked()
	p.remaining = window
	p.startedAt = p.clock.Now().Add(window - p.duration)
	gen := p.gen
	p.timer = p.clock.AfterFunc(window, func() { p.elapse(gen) })
}

func (p *Player) cancelLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Player) liveRemainingLocked() time.Duration {
	rem := p.duration - p.clock.Since(p.startedAt)
	if rem < 0 {
		return 0
	}
	if rem > p.duration {
		return p.duration
	}
	return rem
}

// elapse is the countdown callback. A countdown cancelled before the
// callback acquires the lock is ignored.
func (p *Player) elapse(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.phase != PhaseRunning {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.logger.Debug("auto-advance", "user", p.user, "story", p.story)
	p.advanceLocked()
	p.mu.Unlock()
	p.flush()
}

func (p *Player) emitLocked(e Event) {
	p.pending = append(p.pending, e)
}

// flush delivers pending events. Only one goroutine dispatches at a time;
// events emitted while dispatching (including from observers calling back
// into the player) are queued and delivered by the active dispatcher, which
// keeps delivery in production order.
func (p *Player) flush() {
	p.mu.Lock()
	if p.dispatching {
		p.mu.Unlock()
		return
	}
	p.dispatching = true
	for len(p.pending) > 0 {
		batch := p.pending
		p.pending = nil
		subs := make([]subscription, len(p.subs))
		copy(subs, p.subs)
		p.mu.Unlock()

		for _, e := range batch {
			for _, s := range subs {
				Notify(s.o, e)
			}
		}

		p.mu.Lock()
	}
	p.dispatching = false
	p.mu.Unlock()
}
