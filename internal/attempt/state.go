package attempt

import "fmt"

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed" // terminal: system-forced (timeout) submission
	StatusSubmitted  Status = "submitted" // terminal: user-initiated submission
	StatusAbandoned  Status = "abandoned" // terminal: explicitly walked away
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSubmitted, StatusAbandoned:
		return true
	}
	return false
}

func (s Status) Active() bool { return s == StatusInProgress || s == StatusPaused }

// Event drives the attempt state machine.
type Event string

const (
	EventPause   Event = "pause"
	EventResume  Event = "resume"
	EventSubmit  Event = "submit"
	EventTimeout Event = "timeout"
	EventAbandon Event = "abandon"
)

// transitions is the single source of truth for which status changes are
// legal. Everything not listed is rejected.
var transitions = map[Status]map[Event]Status{
	StatusInProgress: {
		EventPause:   StatusPaused,
		EventSubmit:  StatusSubmitted,
		EventTimeout: StatusCompleted,
		EventAbandon: StatusAbandoned,
	},
	StatusPaused: {
		EventResume:  StatusInProgress,
		EventSubmit:  StatusSubmitted,
		EventTimeout: StatusCompleted,
		EventAbandon: StatusAbandoned,
	},
}

// Transition resolves source status x event. Illegal transitions return
// ErrInvalidState wrapped with the detail.
func Transition(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", fmt.Errorf("%w: %s on %s", ErrInvalidState, ev, from)
}
