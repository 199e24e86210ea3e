package circulation

import (
	"fmt"
	"strings"
)

// Mode selects what a captured code is used for
type Mode string

const (
	ModeCheckout Mode = "checkout"
	ModeReturn   Mode = "return"
	ModeTrack    Mode = "track"
)

// Modes lists every mode in display order
var Modes = []Mode{ModeCheckout, ModeReturn, ModeTrack}

// ParseMode accepts a mode name case-insensitively
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeCheckout, ModeReturn, ModeTrack:
		return m, nil
	}
	return "", fmt.Errorf("%w %q: must be checkout, return or track", ErrInvalidMode, s)
}

// Phase is the state of the scan session
type Phase int

const (
	// PhaseScanning waits for a code with the device armed.
	PhaseScanning Phase = iota
	// PhaseCaptured holds a code awaiting an operator action.
	PhaseCaptured
	// PhaseInFlight has exactly one request outstanding for the code.
	PhaseInFlight
	// PhaseFeedback shows the outcome of the last request.
	PhaseFeedback
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseCaptured:
		return "captured"
	case PhaseInFlight:
		return "in-flight"
	case PhaseFeedback:
		return "feedback"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type FeedbackKind string

const (
	FeedbackSuccess FeedbackKind = "success"
	FeedbackError   FeedbackKind = "error"
)

// Feedback is the banner shown to the operator
type Feedback struct {
	Kind FeedbackKind
	Text string
}

// Snapshot is a copy of the scan session state
type Snapshot struct {
	Mode      Mode
	Phase     Phase
	Code      string // empty when nothing is captured
	MemberID  int64  // zero when no member is selected
	Pending   bool
	Capturing bool
	Feedback  *Feedback
	Lookup    *LookupView
}

// Captured reports whether a code is awaiting action
func (s Snapshot) Captured() bool {
	return s.Code != ""
}

func (s Snapshot) equal(o Snapshot) bool {
	if s.Mode != o.Mode || s.Phase != o.Phase || s.Code != o.Code || s.MemberID != o.MemberID ||
		s.Pending != o.Pending || s.Capturing != o.Capturing || s.Lookup != o.Lookup {
		return false
	}
	if (s.Feedback == nil) != (o.Feedback == nil) {
		return false
	}
	return s.Feedback == nil || *s.Feedback == *o.Feedback
}

// shortCode abbreviates a QR payload for banners
func shortCode(code string) string {
	r := []rune(code)
	if len(r) <= 8 {
		return code
	}
	return string(r[:8]) + "..."
}
