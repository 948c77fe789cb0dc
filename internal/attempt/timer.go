package attempt

import (
	"context"
	"fmt"

	"github.com/prepstack/mockcat/internal/paper"
)

// reconcile drains wall-clock time elapsed since the last sync from the
// attempt's current section. When the section runs dry the overshoot carries
// into the next section with budget left (full mode auto-advances; sectional
// mode has nowhere to go). Returns true when every section is exhausted, in
// which case the caller must finalize the attempt.
//
// The server clock is the only clock: reconcile runs on every mutating
// request instead of any background timer, so a dead client simply times out
// on its next touch.
func (s *Service) reconcile(a *Attempt) (timedOut bool) {
	if a.Status != StatusInProgress {
		return false
	}
	now := s.now().Unix()
	elapsed := now - a.TimerSyncedAt
	if elapsed < 0 {
		elapsed = 0
	}
	a.TimerSyncedAt = now

	rem := int64(a.TimeRemaining[a.CurrentSection]) - elapsed
	for rem <= 0 {
		carry := -rem
		a.TimeRemaining[a.CurrentSection] = 0
		next, ok := nextOpenSection(a)
		if !ok {
			return true
		}
		a.CurrentSection = next
		a.CurrentQuestion = 1
		rem = int64(a.TimeRemaining[next]) - carry
	}
	a.TimeRemaining[a.CurrentSection] = int(rem)
	return false
}

// nextOpenSection is the auto-advance target: the first section after the
// current one in canonical order that still has budget. Sectional attempts
// never advance.
func nextOpenSection(a *Attempt) (paper.Section, bool) {
	if a.Mode == ModeSectional {
		return "", false
	}
	passed := false
	for _, sec := range paper.SectionOrder {
		if sec == a.CurrentSection {
			passed = true
			continue
		}
		if passed && a.TimeRemaining[sec] > 0 {
			return sec, true
		}
	}
	return "", false
}

func (a *Attempt) sectionLocked(sec paper.Section) bool {
	return a.TimeRemaining[sec] <= 0
}

// ProgressUpdate carries the client's view of its own clock and position.
// All of it is advisory; the client can never grow a budget the server
// already shrank.
type ProgressUpdate struct {
	SessionToken    string
	TimeRemaining   map[paper.Section]int
	CurrentSection  paper.Section
	CurrentQuestion int
}

// ProgressResult is the reconciled state handed back to the client so it can
// re-anchor its local countdown.
type ProgressResult struct {
	Attempt  Attempt
	TimedOut bool
}

// SyncProgress merges a client heartbeat into the server-authoritative
// timer. Client section clocks may only lower the server's value; a claim
// above it is rejected as time inflation.
func (s *Service) SyncProgress(ctx context.Context, userID, attemptID string, in ProgressUpdate) (ProgressResult, error) {
	a, err := s.owned(ctx, userID, attemptID)
	if err != nil {
		return ProgressResult{}, err
	}
	if a.Status != StatusInProgress {
		return ProgressResult{}, fmt.Errorf("%w: progress on %s", ErrInvalidState, a.Status)
	}
	if err := s.checkSession(ctx, &a, in.SessionToken, false); err != nil {
		return ProgressResult{}, err
	}

	timedOut := s.reconcile(&a)

	if !timedOut {
		for _, sec := range paper.SectionOrder {
			cv, ok := in.TimeRemaining[sec]
			if !ok {
				continue
			}
			sv := a.TimeRemaining[sec]
			if cv > sv {
				return ProgressResult{}, fmt.Errorf("%w: section %s claims %ds, server holds %ds", ErrTimeInflation, sec, cv, sv)
			}
			if cv < 0 {
				cv = 0
			}
			a.TimeRemaining[sec] = cv
		}
		if a.sectionLocked(a.CurrentSection) {
			if next, ok := nextOpenSection(&a); ok {
				a.CurrentSection = next
				a.CurrentQuestion = 1
			} else {
				timedOut = true
			}
		}
	}

	if !timedOut {
		// Section navigation is forward-only; a request to move back to an
		// earlier section is ignored, not an error.
		if sec, ok := paper.ParseSection(string(in.CurrentSection)); ok &&
			!a.sectionLocked(sec) && paper.SectionRank(sec) >= paper.SectionRank(a.CurrentSection) {
			a.CurrentSection = sec
			if in.CurrentQuestion > 0 {
				a.CurrentQuestion = in.CurrentQuestion
			}
		}
	}

	if timedOut {
		s.forceTimeout(ctx, &a)
		final, err := s.store.GetAttempt(ctx, attemptID)
		if err != nil {
			return ProgressResult{}, err
		}
		return ProgressResult{Attempt: final, TimedOut: true}, nil
	}

	if err := s.store.SaveProgress(ctx, a); err != nil {
		return ProgressResult{}, err
	}
	return ProgressResult{Attempt: a}, nil
}
