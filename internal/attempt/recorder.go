package attempt

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/prepstack/mockcat/internal/eventlog"
	"github.com/prepstack/mockcat/internal/paper"
)

// SaveInput is one response write. Answer nil clears the stored answer;
// pointer fields distinguish "not sent" from zero values.
type SaveInput struct {
	QuestionID        string
	Answer            *string
	Status            string
	IsMarkedForReview bool
	IsVisited         *bool
	TimeSpentSeconds  int
	VisitCount        int
	SessionToken      string
	ForceResume       bool
}

var responseStatuses = map[string]bool{
	ResponseNotVisited:     true,
	ResponseVisited:        true,
	ResponseAnswered:       true,
	ResponseMarked:         true,
	ResponseAnsweredMarked: true,
}

// SaveResponse validates and upserts a single response. The write also
// persists the reconciled timer, so steady answering keeps the server clock
// fresh without a separate heartbeat.
func (s *Service) SaveResponse(ctx context.Context, userID, attemptID string, in SaveInput) (Response, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return Response{}, err
	}
	if a.Status != StatusInProgress {
		return Response{}, fmt.Errorf("%w: save on %s", ErrInvalidState, a.Status)
	}
	if err := s.checkSession(ctx, &a, in.SessionToken, in.ForceResume); err != nil {
		return Response{}, err
	}

	if timedOut := s.reconcile(&a); timedOut {
		s.forceTimeout(ctx, &a)
		return Response{}, fmt.Errorf("%w: attempt timed out", ErrInvalidState)
	}

	assembled, err := s.papers.GetAssembled(ctx, a.PaperID, false)
	if err != nil {
		return Response{}, err
	}
	q, ok := findQuestion(&assembled, in.QuestionID)
	if !ok {
		return Response{}, fmt.Errorf("%w: question %s not on paper %s", ErrInvalidQuestion, in.QuestionID, a.PaperID)
	}
	if a.sectionLocked(q.Section) {
		return Response{}, fmt.Errorf("%w: section %s", ErrSectionLocked, q.Section)
	}

	status := in.Status
	if status == "" {
		status = ResponseVisited
		if in.Answer != nil {
			status = ResponseAnswered
		}
	}
	if !responseStatuses[status] {
		return Response{}, fmt.Errorf("%w: response status %q", ErrBadInput, in.Status)
	}

	visited := true
	if in.IsVisited != nil {
		visited = *in.IsVisited
	}

	r := Response{
		AttemptID:         a.ID,
		QuestionID:        q.ID,
		Answer:            in.Answer,
		Status:            status,
		IsMarkedForReview: in.IsMarkedForReview,
		IsVisited:         visited,
		TimeSpentSeconds:  in.TimeSpentSeconds,
		VisitCount:        in.VisitCount,
		UpdatedAt:         s.now().Unix(),
	}
	saved, err := s.store.UpsertResponse(ctx, r)
	if err != nil {
		return Response{}, err
	}
	if err := s.store.SaveProgress(ctx, a); err != nil {
		return Response{}, err
	}
	return saved, nil
}

// checkSession enforces the single-active-session rule. A mismatched token
// means another tab or device owns the attempt; force-resume hands ownership
// to the caller's token and strands the other session.
func (s *Service) checkSession(ctx context.Context, a *Attempt, token string, forceResume bool) error {
	if a.SessionToken == "" || token == a.SessionToken {
		return nil
	}
	if !forceResume {
		return ErrSessionConflict
	}
	if token == "" {
		token = uuid.NewString()
	}
	a.SessionToken = token
	log.Printf("attempt: forced session takeover on %s", a.ID)
	if err := s.events.Append(ctx, eventlog.TypeSessionForced, a.ID, nil); err != nil {
		log.Printf("attempt: event append failed for %s: %v", a.ID, err)
	}
	return nil
}

func findQuestion(ap *paper.AssembledPaper, id string) (paper.Question, bool) {
	for _, q := range ap.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return paper.Question{}, false
}
