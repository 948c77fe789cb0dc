package attempt

import (
	"context"

	"github.com/prepstack/mockcat/internal/paper"
)

// ActiveKey identifies the one-active-attempt bucket: a user may hold at most
// one in_progress/paused attempt per (paper, mode, sectional section).
type ActiveKey struct {
	UserID  string
	PaperID string
	Mode    Mode
	Section paper.Section // empty for full mode
}

// ListOpts filters attempt listings. Zero values match everything.
type ListOpts struct {
	UserID  string
	PaperID string
	Status  Status
	Limit   int
	Offset  int
}

// Store is the persistence surface for attempts and responses. Implemented by
// the SQL store and an in-memory store for offline runs and tests.
type Store interface {
	// CreateAttempt inserts a new attempt. A uniqueness conflict on the
	// active-attempt index surfaces as ErrDuplicateActive so the caller can
	// fall back to lookup.
	CreateAttempt(ctx context.Context, a Attempt) error

	GetAttempt(ctx context.Context, id string) (Attempt, error)

	// FindActive returns the newest in_progress/paused attempt for the key,
	// or ErrNotFound.
	FindActive(ctx context.Context, key ActiveKey) (Attempt, error)

	// CountTerminal counts completed/submitted attempts in the key's bucket,
	// for attempt-limit enforcement.
	CountTerminal(ctx context.Context, key ActiveKey) (int, error)

	// ListAttempts returns matching attempts, newest first.
	ListAttempts(ctx context.Context, opts ListOpts) ([]Attempt, error)

	// SaveProgress persists the mutable in-flight fields: status, session
	// token, current section/question, time remaining, timer sync point.
	SaveProgress(ctx context.Context, a Attempt) error

	// TransitionTerminal conditionally moves the attempt into a terminal
	// status iff its current status is still active. Returns false when a
	// concurrent writer won the race.
	TransitionTerminal(ctx context.Context, id string, to Status, at int64) (bool, error)

	// SaveScores persists the finalizer's computed score fields.
	SaveScores(ctx context.Context, a Attempt) error

	// UpsertResponse writes the row keyed (attempt, question), last write
	// wins, always refreshing updated_at.
	UpsertResponse(ctx context.Context, r Response) (Response, error)

	GetResponse(ctx context.Context, attemptID, questionID string) (Response, error)
	ListResponses(ctx context.Context, attemptID string) ([]Response, error)

	// SaveResponseOutcomes writes per-question is_correct/marks_obtained after
	// finalization.
	SaveResponseOutcomes(ctx context.Context, attemptID string, rows []Response) error
}
