package playback

import (
	"sync/atomic"
	"time"
)

// Observer receives lifecycle notifications from a Player. Notifications are
// delivered outside the player's lock and in the order they were produced, so
// an observer may call back into the player.
type Observer interface {
	StoryChanged(userIndex, storyIndex int)
	TimerStarted(duration time.Duration)
	TimerPaused()
	TimerResumed(remaining time.Duration)
	Closed()
}

// EventKind identifies a notification.
type EventKind int

const (
	EventStoryChanged EventKind = iota + 1
	EventTimerStarted
	EventTimerPaused
	EventTimerResumed
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventStoryChanged:
		return "story_changed"
	case EventTimerStarted:
		return "timer_started"
	case EventTimerPaused:
		return "timer_paused"
	case EventTimerResumed:
		return "timer_resumed"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a notification in value form.
type Event struct {
	Kind       EventKind
	UserIndex  int
	StoryIndex int
	// Duration is the countdown window for TimerStarted/TimerResumed and the
	// banked remaining time for TimerPaused.
	Duration time.Duration
}

// Notify delivers e to o through the matching Observer method.
func Notify(o Observer, e Event) {
	switch e.Kind {
	case EventStoryChanged:
		o.StoryChanged(e.UserIndex, e.StoryIndex)
	case EventTimerStarted:
		o.TimerStarted(e.Duration)
	case EventTimerPaused:
		o.TimerPaused()
	case EventTimerResumed:
		o.TimerResumed(e.Duration)
	case EventClosed:
		o.Closed()
	}
}

// Funcs adapts plain functions to Observer. Nil fields are ignored.
type Funcs struct {
	OnStoryChanged func(userIndex, storyIndex int)
	OnTimerStarted func(duration time.Duration)
	OnTimerPaused  func()
	OnTimerResumed func(remaining time.Duration)
	OnClosed       func()
}

func (f Funcs) StoryChanged(userIndex, storyIndex int) {
	if f.OnStoryChanged != nil {
		f.OnStoryChanged(userIndex, storyIndex)
	}
}

func (f Funcs) TimerStarted(duration time.Duration) {
	if f.OnTimerStarted != nil {
		f.OnTimerStarted(duration)
	}
}

func (f Funcs) TimerPaused() {
	if f.OnTimerPaused != nil {
		f.OnTimerPaused()
	}
}

func (f Funcs) TimerResumed(remaining time.Duration) {
	if f.OnTimerResumed != nil {
		f.OnTimerResumed(remaining)
	}
}

func (f Funcs) Closed() {
	if f.OnClosed != nil {
		f.OnClosed()
	}
}

// EventStream is an Observer that forwards notifications to a buffered
// channel. Sends never block: when the buffer is full the event is dropped
// and counted, so a slow reader cannot stall the player.
type EventStream struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewEventStream creates a stream with the given buffer size (minimum 1).
func NewEventStream(buffer int) *EventStream {
	if buffer < 1 {
		buffer = 1
	}
	return &EventStream{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the stream.
func (s *EventStream) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because the buffer was full.
func (s *EventStream) Dropped() int64 {
	return s.dropped.Load()
}

func (s *EventStream) send(e Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

func (s *EventStream) StoryChanged(userIndex, storyIndex int) {
	s.send(Event{Kind: EventStoryChanged, UserIndex: userIndex, StoryIndex: storyIndex})
}

func (s *EventStream) TimerStarted(duration time.Duration) {
	s.send(Event{Kind: EventTimerStarted, Duration: duration})
}

func (s *EventStream) TimerPaused() {
	s.send(Event{Kind: EventTimerPaused})
}

func (s *EventStream) TimerResumed(remaining time.Duration) {
	s.send(Event{Kind: EventTimerResumed, Duration: remaining})
}

func (s *EventStream) Closed() {
	s.send(Event{Kind: EventClosed})
}
