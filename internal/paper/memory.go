package paper

import (
	"context"
	"sync"
)

// memoryStore backs dev/offline runs and tests.
type memoryStore struct {
	mu      sync.RWMutex
	bundles map[string]Bundle // by paper id
	bySlug  map[string]string
}

func NewInMemoryStore() Store {
	return &memoryStore{
		bundles: map[string]Bundle{},
		bySlug:  map[string]string{},
	}
}

func (m *memoryStore) PutBundle(_ context.Context, b Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundles[b.Paper.ID] = b
	if b.Paper.Slug != "" {
		m.bySlug[b.Paper.Slug] = b.Paper.ID
	}
	return nil
}

func (m *memoryStore) SetPublished(_ context.Context, ref string, published bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ref
	if _, ok := m.bundles[id]; !ok {
		id = m.bySlug[ref]
	}
	b, ok := m.bundles[id]
	if !ok {
		return ErrNotFound
	}
	b.Paper.Published = published
	m.bundles[id] = b
	return nil
}

func (m *memoryStore) GetPaper(_ context.Context, ref string) (Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.bundles[ref]; ok {
		return b.Paper, nil
	}
	if id, ok := m.bySlug[ref]; ok {
		return m.bundles[id].Paper, nil
	}
	return Paper{}, ErrNotFound
}

func (m *memoryStore) GetAssembled(_ context.Context, paperID string, includeAnswers bool) (AssembledPaper, error) {
	m.mu.RLock()
	b, ok := m.bundles[paperID]
	m.mu.RUnlock()
	if !ok {
		return AssembledPaper{}, ErrNotFound
	}
	assembled := Assemble(b.Sets)
	if !includeAnswers {
		for i := range assembled.Sets {
			assembled.Sets[i].Questions = StripAnswers(assembled.Sets[i].Questions)
		}
		assembled.Questions = StripAnswers(assembled.Questions)
	}
	return assembled, nil
}
