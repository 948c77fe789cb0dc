package attempt

import (
	"context"
	"fmt"
	"log"

	"github.com/prepstack/mockcat/internal/eventlog"
	"github.com/prepstack/mockcat/internal/paper"
	"github.com/prepstack/mockcat/internal/scoring"
)

// lateSubmitGraceSeconds absorbs submit requests that land just after the
// paper clock runs out (network latency, client countdown drift). Beyond it
// the submission is recorded as timer-forced rather than student-initiated.
const lateSubmitGraceSeconds = 120

// SubmitOptions qualifies a finalization request.
type SubmitOptions struct {
	SessionToken string
	// Forced marks a timer-driven finalization; the attempt lands on
	// completed instead of submitted.
	Forced bool
}

// SubmitResult is the scored outcome. AlreadySubmitted distinguishes a fresh
// finalization from an idempotent replay of a terminal attempt.
type SubmitResult struct {
	Attempt          Attempt                  `json:"attempt"`
	AlreadySubmitted bool                     `json:"already_submitted"`
	QuestionResults  []scoring.QuestionResult `json:"question_results,omitempty"`
}

// Submit finalizes the attempt exactly once. The terminal transition is a
// conditional store update; every request that loses that race (including a
// double-click or a timeout colliding with a manual submit) re-reads and
// returns the persisted result instead of re-scoring.
func (s *Service) Submit(ctx context.Context, userID, attemptID string, opts SubmitOptions) (SubmitResult, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	if a.Status.Terminal() {
		return SubmitResult{Attempt: a, AlreadySubmitted: true}, nil
	}

	// Submit always goes through, even from a stale session: losing work at
	// the finish line is worse than honoring a superseded tab.
	if a.SessionToken != "" && opts.SessionToken != "" && opts.SessionToken != a.SessionToken {
		log.Printf("attempt: submit with stale session token on %s", a.ID)
	}

	ev := EventSubmit
	if opts.Forced {
		ev = EventTimeout
	}
	if timedOut := s.reconcile(&a); timedOut {
		ev = EventTimeout
	}

	now := s.now().Unix()
	p, err := s.papers.GetPaper(ctx, a.PaperID)
	if err != nil {
		return SubmitResult{}, err
	}
	if total := attemptBudgetSeconds(p, a); total > 0 &&
		now-a.StartedAt > int64(total+lateSubmitGraceSeconds) && !a.TimeRemaining.AnyPositive() {
		ev = EventTimeout
	}

	to, err := Transition(a.Status, ev)
	if err != nil {
		return SubmitResult{}, err
	}

	won, err := s.store.TransitionTerminal(ctx, a.ID, to, now)
	if err != nil {
		return SubmitResult{}, err
	}
	if !won {
		final, err := s.store.GetAttempt(ctx, attemptID)
		if err != nil {
			return SubmitResult{}, err
		}
		if !final.Status.Terminal() {
			return SubmitResult{}, fmt.Errorf("%w: concurrent submit left attempt active", ErrInvalidState)
		}
		return SubmitResult{Attempt: final, AlreadySubmitted: true}, nil
	}

	a.Status = to
	a.SubmittedAt = now
	a.CompletedAt = now

	result, qr, err := s.score(ctx, &a, p)
	if err != nil {
		// The transition already happened; a retry will replay the terminal
		// attempt, so surface the scoring failure rather than hide it.
		return SubmitResult{}, fmt.Errorf("attempt %s finalized but scoring failed: %w", a.ID, err)
	}

	typ := eventlog.TypeAttemptSubmitted
	counter := "attempt_submitted"
	if to == StatusCompleted {
		typ = eventlog.TypeAttemptTimedOut
		counter = "attempt_timed_out"
	}
	s.metrics.Increment(counter)
	if err := s.events.Append(ctx, typ, a.ID, map[string]any{
		"total_score": result.TotalScore, "forced": to == StatusCompleted,
	}); err != nil {
		log.Printf("attempt: event append failed for %s: %v", a.ID, err)
	}

	return SubmitResult{Attempt: a, QuestionResults: qr}, nil
}

// Results replays the persisted outcome of a terminal attempt, including
// per-question breakdown with correct answers revealed.
func (s *Service) Results(ctx context.Context, userID, attemptID string) (SubmitResult, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !a.Status.Terminal() {
		return SubmitResult{}, fmt.Errorf("%w: results before finalization", ErrInvalidState)
	}

	assembled, err := s.papers.GetAssembled(ctx, a.PaperID, true)
	if err != nil {
		return SubmitResult{}, err
	}
	responses, err := s.store.ListResponses(ctx, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	qr := make([]scoring.QuestionResult, 0, len(assembled.Questions))
	byQuestion := make(map[string]Response, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}
	for _, q := range assembled.Questions {
		r := byQuestion[q.ID]
		item := scoring.QuestionResult{
			QuestionID:    q.ID,
			Section:       q.Section,
			UserAnswer:    r.Answer,
			CorrectAnswer: q.CorrectAnswer,
		}
		if r.IsCorrect != nil {
			item.IsCorrect = *r.IsCorrect
			item.Answered = r.Answer != nil && *r.Answer != ""
		}
		if r.MarksObtained != nil {
			item.MarksObtained = *r.MarksObtained
		}
		qr = append(qr, item)
	}
	return SubmitResult{Attempt: a, AlreadySubmitted: true, QuestionResults: qr}, nil
}

// score computes and persists the attempt's result. Unknown question ids in
// stored responses (paper edited mid-attempt) are dropped with a log line.
func (s *Service) score(ctx context.Context, a *Attempt, p paper.Paper) (scoring.Result, []scoring.QuestionResult, error) {
	assembled, err := s.papers.GetAssembled(ctx, a.PaperID, true)
	if err != nil {
		return scoring.Result{}, nil, err
	}
	responses, err := s.store.ListResponses(ctx, a.ID)
	if err != nil {
		return scoring.Result{}, nil, err
	}

	known := make(map[string]bool, len(assembled.Questions))
	for _, q := range assembled.Questions {
		known[q.ID] = true
	}
	in := make([]scoring.Response, 0, len(responses))
	for _, r := range responses {
		if !known[r.QuestionID] {
			log.Printf("attempt: dropping response to unknown question %s on attempt %s", r.QuestionID, a.ID)
			continue
		}
		in = append(in, scoring.Response{
			QuestionID:       r.QuestionID,
			Answer:           r.Answer,
			TimeSpentSeconds: r.TimeSpentSeconds,
		})
	}

	result := scoring.Score(assembled.Questions, in)

	a.TotalScore = ptr(result.TotalScore)
	a.MaxPossibleScore = ptr(result.MaxPossibleScore)
	a.CorrectCount = result.CorrectCount
	a.IncorrectCount = result.IncorrectCount
	a.UnansweredCount = result.UnansweredCount
	a.Accuracy = result.Accuracy
	a.AttemptRate = ptr(result.AttemptRate)
	a.SectionScores = result.SectionScores
	a.TimeTakenSeconds = elapsedBudgetSeconds(p, *a)

	if err := s.store.SaveScores(ctx, *a); err != nil {
		return scoring.Result{}, nil, err
	}

	outcomes := make([]Response, 0, len(result.QuestionResults))
	for _, qr := range result.QuestionResults {
		outcomes = append(outcomes, Response{
			AttemptID:     a.ID,
			QuestionID:    qr.QuestionID,
			IsCorrect:     ptr(qr.IsCorrect),
			MarksObtained: ptr(qr.MarksObtained),
		})
	}
	if err := s.store.SaveResponseOutcomes(ctx, a.ID, outcomes); err != nil {
		return scoring.Result{}, nil, err
	}
	return result, result.QuestionResults, nil
}

// forceTimeout finalizes an attempt whose every section has drained. Errors
// are logged, not returned: the caller is mid-request on an attempt that is
// already dead, and a retry will hit the terminal short-circuit.
func (s *Service) forceTimeout(ctx context.Context, a *Attempt) {
	if _, err := s.Submit(ctx, a.UserID, a.ID, SubmitOptions{Forced: true, SessionToken: a.SessionToken}); err != nil {
		log.Printf("attempt: forced timeout finalization failed for %s: %v", a.ID, err)
	}
}

// attemptBudgetSeconds is the total clock the attempt was granted: the whole
// paper for full mode, one section for sectional.
func attemptBudgetSeconds(p paper.Paper, a Attempt) int {
	if a.Mode == ModeSectional {
		return p.SectionDurations()[a.SectionalSection]
	}
	return p.TotalDurationSeconds()
}

// elapsedBudgetSeconds measures exam-clock time spent: granted budget minus
// whatever remains. Pause time never counts.
func elapsedBudgetSeconds(p paper.Paper, a Attempt) int {
	total := attemptBudgetSeconds(p, a)
	remaining := 0
	for _, v := range a.TimeRemaining {
		remaining += v
	}
	if remaining > total {
		return 0
	}
	return total - remaining
}

func ptr[T any](v T) *T { return &v }
