package verification

import (
	"fmt"
	"time"
)

// State is the confirmation state of one verification attempt.
type State int

const (
	AwaitingFace State = iota
	Confirming
	Matched
	Rejected
)

func (s State) String() string {
	switch s {
	case AwaitingFace:
		return "awaiting_face"
	case Confirming:
		return "confirming"
	case Matched:
		return "matched"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Matched || s == Rejected
}

// Policy decides what a frame without an accepted face does while confirming.
type Policy string

const (
	// PolicySticky never leaves Confirming on a negative frame.
	PolicySticky Policy = "sticky"
	// PolicyContiguous returns to AwaitingFace on any negative frame, so the
	// whole window must consist of accepted frames.
	PolicyContiguous Policy = "contiguous"
)

// ParsePolicy maps a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySticky, "":
		return PolicySticky, nil
	case PolicyContiguous:
		return PolicyContiguous, nil
	default:
		return "", fmt.Errorf("unknown confirmation policy: %s", s)
	}
}

// Tracker is the temporal confirmation state machine:
//
//	AwaitingFace -> Confirming(start) -> Matched     once window has elapsed
//	AwaitingFace | Confirming -> Rejected            on abort
//
// It is advanced once per frame or by Tick and is not safe for concurrent use.
type Tracker struct {
	window time.Duration
	policy Policy
	state  State
	start  time.Time
}

// NewTracker creates a tracker in AwaitingFace.
func NewTracker(window time.Duration, policy Policy) *Tracker {
	return &Tracker{window: window, policy: policy}
}

// Observe feeds one frame. positive is true when any region on the frame
// was accepted. started is true when this frame began a confirmation window.
func (t *Tracker) Observe(positive bool, at time.Time) (state State, started bool) {
	switch t.state {
	case AwaitingFace:
		if positive {
			t.state = Confirming
			t.start = at
			started = true
		}
	case Confirming:
		if !positive && t.policy == PolicyContiguous {
			t.state = AwaitingFace
			t.start = time.Time{}
		}
	}

	return t.Tick(at), started
}

// Tick completes a confirmation whose window has elapsed by at. It needs no
// frame, so failed reads cannot hold an attempt in Confirming.
func (t *Tracker) Tick(at time.Time) State {
	if t.state == Confirming && at.Sub(t.start) >= t.window {
		t.state = Matched
	}
	return t.state
}

// Abort rejects a non-terminal attempt.
func (t *Tracker) Abort() State {
	if !t.state.Terminal() {
		t.state = Rejected
	}
	return t.state
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Start returns when the current confirmation window began.
func (t *Tracker) Start() time.Time {
	return t.start
}

// Remaining returns how much of the window is left at the given time.
func (t *Tracker) Remaining(at time.Time) time.Duration {
	if t.state != Confirming {
		return 0
	}
	if left := t.window - at.Sub(t.start); left > 0 {
		return left
	}
	return 0
}
