package attempt

import (
	"github.com/prepstack/mockcat/internal/paper"
	"github.com/prepstack/mockcat/internal/scoring"
)

type Mode string

const (
	ModeFull      Mode = "full"
	ModeSectional Mode = "sectional"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case ModeFull, "":
		return ModeFull, true
	case ModeSectional:
		return ModeSectional, true
	}
	return "", false
}

// TimeRemaining maps each section to its remaining budget in seconds. Stored
// server-side; the only authoritative copy.
type TimeRemaining map[paper.Section]int

func (t TimeRemaining) clone() TimeRemaining {
	out := make(TimeRemaining, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// AnyPositive reports whether any section still has budget.
func (t TimeRemaining) AnyPositive() bool {
	for _, v := range t {
		if v > 0 {
			return true
		}
	}
	return false
}

// Attempt is one user's instance of taking a paper. Immutable once terminal.
type Attempt struct {
	ID      string `json:"id"`
	PaperID string `json:"paper_id"`
	UserID  string `json:"user_id"`

	Mode Mode `json:"mode"`
	// SectionalSection is the single permitted section for sectional mode;
	// empty for full mode.
	SectionalSection paper.Section `json:"sectional_section,omitempty"`

	Status          Status        `json:"status"`
	CurrentSection  paper.Section `json:"current_section"`
	CurrentQuestion int           `json:"current_question"`
	TimeRemaining   TimeRemaining `json:"time_remaining"`

	// SessionToken is the opaque resume credential issued by
	// InitializeSession. Empty until the first session is established.
	SessionToken string `json:"-"`

	StartedAt     int64 `json:"started_at"`
	TimerSyncedAt int64 `json:"-"` // server clock of the last timer reconcile
	SubmittedAt   int64 `json:"submitted_at,omitempty"`
	CompletedAt   int64 `json:"completed_at,omitempty"`
	CreatedAt     int64 `json:"created_at"`

	// Score fields, populated exactly once by the finalizer.
	TotalScore       *float64                               `json:"total_score,omitempty"`
	MaxPossibleScore *float64                               `json:"max_possible_score,omitempty"`
	CorrectCount     int                                    `json:"correct_count"`
	IncorrectCount   int                                    `json:"incorrect_count"`
	UnansweredCount  int                                    `json:"unanswered_count"`
	Accuracy         *float64                               `json:"accuracy,omitempty"`
	AttemptRate      *float64                               `json:"attempt_rate,omitempty"`
	SectionScores    map[paper.Section]scoring.SectionScore `json:"section_scores,omitempty"`
	TimeTakenSeconds int                                    `json:"time_taken_seconds,omitempty"`
}

// sectionalKey normalizes the (mode, section) bucket used for idempotent
// start lookups and attempt-limit counting.
func (a Attempt) sectionalKey() paper.Section {
	if a.Mode == ModeSectional {
		return a.SectionalSection
	}
	return ""
}

// Question palette states, mirrored from the client for analytics.
const (
	ResponseNotVisited     = "not_visited"
	ResponseVisited        = "visited"
	ResponseAnswered       = "answered"
	ResponseMarked         = "marked"
	ResponseAnsweredMarked = "answered_marked"
)

// Response is one student's answer to one question within one attempt.
// Exactly one row per (attempt, question); upserted, never deleted.
type Response struct {
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`

	Answer *string `json:"answer"`

	Status            string `json:"status"`
	IsMarkedForReview bool   `json:"is_marked_for_review"`
	IsVisited         bool   `json:"is_visited"`
	TimeSpentSeconds  int    `json:"time_spent_seconds"`
	VisitCount        int    `json:"visit_count"`

	// Populated after finalization.
	IsCorrect     *bool    `json:"is_correct,omitempty"`
	MarksObtained *float64 `json:"marks_obtained,omitempty"`

	UpdatedAt int64 `json:"updated_at"`
}
