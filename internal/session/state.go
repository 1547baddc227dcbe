package session

import (
	"fmt"
	"time"

	"github.com/ironsheep/plate-gate/internal/gate"
	"github.com/ironsheep/plate-gate/internal/plate"
	"github.com/ironsheep/plate-gate/internal/stabilize"
)

// State is the scanning state of a session.
type State int

// Session states.
const (
	Idle State = iota
	HasCandidate
	Stable
	Submitting
	AwaitingConfirmation
	Closed
)

var stateNames = [...]string{
	Idle:                 "idle",
	HasCandidate:         "has_candidate",
	Stable:               "stable",
	Submitting:           "submitting",
	AwaitingConfirmation: "awaiting_confirmation",
	Closed:               "closed",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// EventKind tags an Event.
type EventKind int

// Event kinds.
const (
	// EventText carries raw extracted text that passed the forward gate.
	EventText EventKind = iota
	// EventCandidate carries the frame's best candidate and the current vote.
	EventCandidate
	// EventSubmitting reports that a request is about to be sent.
	EventSubmitting
	// EventOutcome carries the result of a submission.
	EventOutcome
	// EventStateChanged reports a state transition.
	EventStateChanged
)

var eventNames = [...]string{
	EventText:         "text",
	EventCandidate:    "candidate",
	EventSubmitting:   "submitting",
	EventOutcome:      "outcome",
	EventStateChanged: "state_changed",
}

func (k EventKind) String() string {
	if int(k) >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is published on the session's event channel. Only the fields that
// belong to Kind are set.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Seq       uint64    `json:"seq,omitempty"`

	Text      string            `json:"text,omitempty"`
	Candidate *plate.Candidate  `json:"candidate,omitempty"`
	Vote      *stabilize.Result `json:"vote,omitempty"`
	Plate     string            `json:"plate,omitempty"`
	Outcome   *gate.Outcome     `json:"outcome,omitempty"`
	From      State             `json:"from,omitempty"`
	State     State             `json:"state"`
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID            string           `json:"id"`
	State         State            `json:"state"`
	Paused        bool             `json:"paused"`
	Best          plate.Candidate  `json:"best"`
	Vote          stabilize.Result `json:"vote"`
	Buffer        []string         `json:"buffer"`
	Gate          gate.State       `json:"gate"`
	Pending       *gate.Outcome    `json:"pending,omitempty"`
	LastOutcome   *gate.Outcome    `json:"last_outcome,omitempty"`
	CooldownUntil time.Time        `json:"cooldown_until,omitempty"`
	Processed     uint64           `json:"processed"`
	InFlight      bool             `json:"in_flight"`
	DroppedEvents uint64           `json:"dropped_events"`
}
