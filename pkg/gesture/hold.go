// Package gesture turns raw press/release input into viewer intents:
// press-and-hold pauses playback, a short press is a tap on a navigation zone.
package gesture

import "time"

// DefaultHoldThreshold is how long a press must last to count as a hold.
const DefaultHoldThreshold = 300 * time.Millisecond

// Zone is a tap target on the story surface.
type Zone int

const (
	ZoneNone Zone = iota
	ZonePrevious
	ZoneNext
)

func (z Zone) String() string {
	switch z {
	case ZonePrevious:
		return "previous"
	case ZoneNext:
		return "next"
	default:
		return "none"
	}
}

// ZoneAt maps a horizontal position on a surface of the given width to a tap
// zone. The left third goes back, the rest goes forward.
func ZoneAt(x, width int) Zone {
	if width <= 0 || x < 0 || x >= width {
		return ZoneNone
	}
	if x < width/3 {
		return ZonePrevious
	}
	return ZoneNext
}

// Release describes what a release should do.
type Release struct {
	// Resume is set when the press had turned into a hold that paused playback.
	Resume bool
	// Tap is the zone hit by a short press; ZoneNone after a hold.
	Tap Zone
}

// HoldTracker follows a single pointer. It owns no timer: the caller schedules
// a check after Threshold and passes back the token returned by Press, so a
// stale check from an earlier press is ignored.
type HoldTracker struct {
	threshold time.Duration
	holding   bool
	paused    bool
	token     uint64
	x, width  int
}

// NewHoldTracker creates a tracker. A non-positive threshold selects
// DefaultHoldThreshold.
func NewHoldTracker(threshold time.Duration) *HoldTracker {
	if threshold <= 0 {
		threshold = DefaultHoldThreshold
	}
	return &HoldTracker{threshold: threshold}
}

// Threshold returns the hold threshold.
func (h *HoldTracker) Threshold() time.Duration {
	return h.threshold
}

// Press starts tracking a press at x on a surface of the given width and
// returns the token for the deferred hold check.
func (h *HoldTracker) Press(x, width int) uint64 {
	h.token++
	h.holding = true
	h.paused = false
	h.x, h.width = x, width
	return h.token
}

// HoldElapsed reports whether the press identified by token is still held,
// in which case playback should pause now.
func (h *HoldTracker) HoldElapsed(token uint64) bool {
	if !h.holding || token != h.token || h.paused {
		return false
	}
	h.paused = true
	return true
}

// Holding reports whether a press is in progress.
func (h *HoldTracker) Holding() bool {
	return h.holding
}

// Release ends the press. A second release without a press is ignored.
func (h *HoldTracker) Release() Release {
	if !h.holding {
		return Release{}
	}
	h.holding = false
	if h.paused {
		h.paused = false
		return Release{Resume: true}
	}
	return Release{Tap: ZoneAt(h.x, h.width)}
}

// Cancel drops the current press without producing a release, e.g. when the
// viewer closes mid-press. It reports whether playback had been paused by the
// hold.
func (h *HoldTracker) Cancel() bool {
	wasPaused := h.paused
	h.holding = false
	h.paused = false
	h.token++
	return wasPaused
}
