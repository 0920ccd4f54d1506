package session

import "fmt"

// IntentKind is a discrete request from the input layer.
type IntentKind int

const (
	IntentOpen IntentKind = iota + 1
	IntentNext
	IntentPrevious
	IntentPause
	IntentResume
	IntentTogglePause
	IntentClose
)

func (k IntentKind) String() string {
	switch k {
	case IntentOpen:
		return "open"
	case IntentNext:
		return "next"
	case IntentPrevious:
		return "previous"
	case IntentPause:
		return "pause"
	case IntentResume:
		return "resume"
	case IntentTogglePause:
		return "toggle_pause"
	case IntentClose:
		return "close"
	default:
		return fmt.Sprintf("intent(%d)", int(k))
	}
}

// Intent is one input event. User is only read by IntentOpen.
type Intent struct {
	Kind IntentKind
	User int
}

// Dispatch applies an intent. Only IntentOpen can fail.
func (c *Controller) Dispatch(in Intent) error {
	c.logger.Debug("intent", "kind", in.Kind, "user", in.User)
	switch in.Kind {
	case IntentOpen:
		return c.Open(in.User)
	case IntentNext:
		c.Next()
	case IntentPrevious:
		c.Previous()
	case IntentPause:
		c.Pause()
	case IntentResume:
		c.Resume()
	case IntentTogglePause:
		c.TogglePause()
	case IntentClose:
		c.Close()
	default:
		return fmt.Errorf("unknown intent %s", in.Kind)
	}
	return nil
}
