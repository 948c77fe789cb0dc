package attempt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/prepstack/mockcat/internal/eventlog"
	"github.com/prepstack/mockcat/internal/paper"
	"github.com/prepstack/mockcat/internal/telemetry"
)

// Service is the attempt lifecycle manager. All cross-request state lives in
// the Store; the service itself is stateless and safe for concurrent use.
type Service struct {
	papers  paper.Store
	store   Store
	events  eventlog.Sink
	metrics telemetry.Sink
	now     func() time.Time
}

type Option func(*Service)

func WithEvents(sink eventlog.Sink) Option   { return func(s *Service) { s.events = sink } }
func WithMetrics(sink telemetry.Sink) Option { return func(s *Service) { s.metrics = sink } }
func WithClock(now func() time.Time) Option  { return func(s *Service) { s.now = now } }

func NewService(papers paper.Store, store Store, opts ...Option) *Service {
	s := &Service{
		papers:  papers,
		store:   store,
		events:  eventlog.Nop{},
		metrics: telemetry.Nop{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StartResult reports the attempt a Start call resolved to, and whether it
// was an existing active attempt (idempotent start) rather than a new one.
type StartResult struct {
	Attempt Attempt
	Resumed bool
}

// Start creates an attempt, or returns the caller's existing active attempt
// for the same (paper, mode, section) bucket. Creation is lookup-then-insert:
// a uniqueness conflict on insert means another request won the race, so we
// retry the lookup instead of failing.
func (s *Service) Start(ctx context.Context, userID, paperRef string, mode Mode, section paper.Section) (StartResult, error) {
	p, err := s.papers.GetPaper(ctx, paperRef)
	if err != nil {
		if errors.Is(err, paper.ErrNotFound) {
			return StartResult{}, ErrPaperUnavailable
		}
		return StartResult{}, err
	}
	if !p.Published {
		return StartResult{}, ErrPaperUnavailable
	}

	switch mode {
	case ModeFull:
		section = ""
	case ModeSectional:
		if !p.AllowSectional {
			return StartResult{}, ErrSectionalNotAllowed
		}
		if !sectionAllowed(p, section) {
			return StartResult{}, ErrInvalidSectional
		}
	default:
		return StartResult{}, ErrInvalidMode
	}

	key := ActiveKey{UserID: userID, PaperID: p.ID, Mode: mode, Section: section}

	if existing, err := s.store.FindActive(ctx, key); err == nil {
		return StartResult{Attempt: existing, Resumed: true}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return StartResult{}, err
	}

	if p.AttemptLimit > 0 {
		n, err := s.store.CountTerminal(ctx, key)
		if err != nil {
			return StartResult{}, err
		}
		if n >= p.AttemptLimit {
			return StartResult{}, ErrLimitReached
		}
	}

	now := s.now().Unix()
	a := Attempt{
		ID:               uuid.NewString(),
		PaperID:          p.ID,
		UserID:           userID,
		Mode:             mode,
		SectionalSection: section,
		Status:           StatusInProgress,
		CurrentQuestion:  1,
		TimeRemaining:    initialTimeRemaining(p, mode, section),
		StartedAt:        now,
		TimerSyncedAt:    now,
		CreatedAt:        now,
	}
	if mode == ModeSectional {
		a.CurrentSection = section
	} else {
		a.CurrentSection = paper.SectionOrder[0]
	}

	if err := s.store.CreateAttempt(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateActive) {
			// Lost the creation race: redirect to the winner.
			existing, lookupErr := s.store.FindActive(ctx, key)
			if lookupErr == nil {
				return StartResult{Attempt: existing, Resumed: true}, nil
			}
			// An older unique index (user+paper only) can conflict without a
			// matching bucket; surface that as a recoverable conflict.
			return StartResult{}, ErrActiveConflict
		}
		return StartResult{}, err
	}

	s.metrics.Increment("attempt_created")
	if err := s.events.Append(ctx, eventlog.TypeAttemptCreated, a.ID, map[string]any{
		"paper_id": p.ID, "mode": string(mode), "section": string(section),
	}); err != nil {
		log.Printf("attempt: event append failed for %s: %v", a.ID, err)
	}
	return StartResult{Attempt: a}, nil
}

// InitializeSession issues (or re-issues) the opaque session token for an
// attempt. Safe to call repeatedly: an in_progress attempt with a token gets
// the same token back with no side effects, which is what makes page-reload
// re-initialization idempotent. A paused attempt resumes through here and
// only here, with a fresh token.
func (s *Service) InitializeSession(ctx context.Context, userID, attemptID string) (string, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return "", err
	}

	switch a.Status {
	case StatusInProgress:
		if timedOut := s.reconcile(&a); timedOut {
			s.forceTimeout(ctx, &a)
			return "", fmt.Errorf("%w: attempt timed out", ErrInvalidState)
		}
		if a.SessionToken != "" {
			return a.SessionToken, nil
		}
		a.SessionToken = uuid.NewString()
		if err := s.store.SaveProgress(ctx, a); err != nil {
			return "", err
		}
		return a.SessionToken, nil

	case StatusPaused:
		next, err := Transition(a.Status, EventResume)
		if err != nil {
			return "", err
		}
		a.Status = next
		a.SessionToken = uuid.NewString()
		a.TimerSyncedAt = s.now().Unix() // paused time does not drain the clock
		if err := s.store.SaveProgress(ctx, a); err != nil {
			return "", err
		}
		if err := s.events.Append(ctx, eventlog.TypeSessionResumed, a.ID, nil); err != nil {
			log.Printf("attempt: event append failed for %s: %v", a.ID, err)
		}
		return a.SessionToken, nil

	default:
		return "", fmt.Errorf("%w: session init on %s", ErrInvalidState, a.Status)
	}
}

// Pause stops the clock. Only valid from in_progress; resuming goes through
// InitializeSession.
func (s *Service) Pause(ctx context.Context, userID, attemptID string) error {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if a.Status == StatusInProgress {
		if timedOut := s.reconcile(&a); timedOut {
			s.forceTimeout(ctx, &a)
			return fmt.Errorf("%w: attempt timed out", ErrInvalidState)
		}
	}
	next, err := Transition(a.Status, EventPause)
	if err != nil {
		return err
	}
	a.Status = next
	if err := s.store.SaveProgress(ctx, a); err != nil {
		return err
	}
	if err := s.events.Append(ctx, eventlog.TypeAttemptPaused, a.ID, nil); err != nil {
		log.Printf("attempt: event append failed for %s: %v", a.ID, err)
	}
	return nil
}

// Snapshot reconciles the server clock and returns the attempt's current
// state. A timed-out attempt is finalized on the way.
func (s *Service) Snapshot(ctx context.Context, userID, attemptID string) (Attempt, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusInProgress {
		if timedOut := s.reconcile(&a); timedOut {
			s.forceTimeout(ctx, &a)
			return s.store.GetAttempt(ctx, attemptID)
		}
		if err := s.store.SaveProgress(ctx, a); err != nil {
			return Attempt{}, err
		}
	}
	return a, nil
}

// Abandon explicitly walks away from an active attempt. Not exposed over
// HTTP; kept for parity with content tooling that clears stuck attempts.
func (s *Service) Abandon(ctx context.Context, userID, attemptID string) error {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if _, err := Transition(a.Status, EventAbandon); err != nil {
		return err
	}
	won, err := s.store.TransitionTerminal(ctx, a.ID, StatusAbandoned, s.now().Unix())
	if err != nil {
		return err
	}
	if !won {
		return fmt.Errorf("%w: abandon on terminal attempt", ErrInvalidState)
	}
	return nil
}

// List returns the attempt history matching opts. Callers are responsible
// for scoping UserID to the requester when they lack view-all rights.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	return s.store.ListAttempts(ctx, opts)
}

func (s *Service) owned(ctx context.Context, userID, attemptID string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != userID {
		return Attempt{}, ErrNotOwner
	}
	return a, nil
}

func sectionAllowed(p paper.Paper, section paper.Section) bool {
	if _, ok := paper.ParseSection(string(section)); !ok {
		return false
	}
	for _, sec := range p.SectionalAllowedSections() {
		if sec == section {
			return true
		}
	}
	return false
}

// initialTimeRemaining seeds the per-section budget: every section for full
// mode, only the target for sectional mode.
func initialTimeRemaining(p paper.Paper, mode Mode, section paper.Section) TimeRemaining {
	durations := p.SectionDurations()
	out := make(TimeRemaining, len(paper.SectionOrder))
	for _, sec := range paper.SectionOrder {
		if mode == ModeSectional && sec != section {
			out[sec] = 0
			continue
		}
		out[sec] = durations[sec]
	}
	return out
}
