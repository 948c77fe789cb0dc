package attempt

import (
	"context"
	"sort"
	"sync"
)

// memoryStore backs offline runs and tests. It enforces the same
// one-active-attempt rule the SQL store gets from its partial unique index.
type memoryStore struct {
	mu        sync.RWMutex
	attempts  map[string]Attempt
	responses map[string]map[string]Response // attemptID -> questionID -> row
}

func NewInMemoryStore() Store {
	return &memoryStore{
		attempts:  map[string]Attempt{},
		responses: map[string]map[string]Response{},
	}
}

func (m *memoryStore) CreateAttempt(ctx context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attempts {
		if existing.Status.Active() &&
			existing.UserID == a.UserID && existing.PaperID == a.PaperID &&
			existing.Mode == a.Mode && existing.sectionalKey() == a.sectionalKey() {
			return ErrDuplicateActive
		}
	}
	a.TimeRemaining = a.TimeRemaining.clone()
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	a.TimeRemaining = a.TimeRemaining.clone()
	return a, nil
}

func (m *memoryStore) FindActive(ctx context.Context, key ActiveKey) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *Attempt
	for _, a := range m.attempts {
		a := a
		if a.Status.Active() &&
			a.UserID == key.UserID && a.PaperID == key.PaperID &&
			a.Mode == key.Mode && a.sectionalKey() == key.Section {
			if found == nil || a.CreatedAt > found.CreatedAt {
				found = &a
			}
		}
	}
	if found == nil {
		return Attempt{}, ErrNotFound
	}
	out := *found
	out.TimeRemaining = out.TimeRemaining.clone()
	return out, nil
}

func (m *memoryStore) CountTerminal(ctx context.Context, key ActiveKey) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.attempts {
		if a.Status.Terminal() && a.Status != StatusAbandoned &&
			a.UserID == key.UserID && a.PaperID == key.PaperID &&
			a.Mode == key.Mode && a.sectionalKey() == key.Section {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) ListAttempts(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Attempt
	for _, a := range m.attempts {
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.PaperID != "" && a.PaperID != opts.PaperID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		a.TimeRemaining = a.TimeRemaining.clone()
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) SaveProgress(ctx context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return ErrNotFound
	}
	if !cur.Status.Active() {
		return ErrInvalidState
	}
	cur.Status = a.Status
	cur.CurrentSection = a.CurrentSection
	cur.CurrentQuestion = a.CurrentQuestion
	cur.TimeRemaining = a.TimeRemaining.clone()
	cur.SessionToken = a.SessionToken
	cur.TimerSyncedAt = a.TimerSyncedAt
	m.attempts[a.ID] = cur
	return nil
}

func (m *memoryStore) TransitionTerminal(ctx context.Context, id string, to Status, at int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[id]
	if !ok {
		return false, ErrNotFound
	}
	if !cur.Status.Active() {
		return false, nil
	}
	cur.Status = to
	cur.SubmittedAt = at
	cur.CompletedAt = at
	m.attempts[id] = cur
	return true, nil
}

func (m *memoryStore) SaveScores(ctx context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return ErrNotFound
	}
	cur.TotalScore = a.TotalScore
	cur.MaxPossibleScore = a.MaxPossibleScore
	cur.CorrectCount = a.CorrectCount
	cur.IncorrectCount = a.IncorrectCount
	cur.UnansweredCount = a.UnansweredCount
	cur.Accuracy = a.Accuracy
	cur.AttemptRate = a.AttemptRate
	cur.SectionScores = a.SectionScores
	cur.TimeTakenSeconds = a.TimeTakenSeconds
	m.attempts[a.ID] = cur
	return nil
}

func (m *memoryStore) UpsertResponse(ctx context.Context, r Response) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byQ, ok := m.responses[r.AttemptID]
	if !ok {
		byQ = map[string]Response{}
		m.responses[r.AttemptID] = byQ
	}
	// Final outcome fields are written only by SaveResponseOutcomes.
	if prev, ok := byQ[r.QuestionID]; ok {
		r.IsCorrect = prev.IsCorrect
		r.MarksObtained = prev.MarksObtained
	}
	byQ[r.QuestionID] = r
	return r, nil
}

func (m *memoryStore) GetResponse(ctx context.Context, attemptID, questionID string) (Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.responses[attemptID][questionID]
	if !ok {
		return Response{}, ErrNotFound
	}
	return r, nil
}

func (m *memoryStore) ListResponses(ctx context.Context, attemptID string) ([]Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byQ := m.responses[attemptID]
	out := make([]Response, 0, len(byQ))
	for _, r := range byQ {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) SaveResponseOutcomes(ctx context.Context, attemptID string, outcomes []Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byQ, ok := m.responses[attemptID]
	if !ok {
		return nil
	}
	for _, o := range outcomes {
		cur, ok := byQ[o.QuestionID]
		if !ok {
			continue
		}
		cur.IsCorrect = o.IsCorrect
		cur.MarksObtained = o.MarksObtained
		byQ[o.QuestionID] = cur
	}
	return nil
}
