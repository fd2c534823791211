package scenario

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process custom scenario store for local/dev use.
type InMemoryStore struct {
	mu        sync.RWMutex
	byAccount map[string]map[string]Scenario
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byAccount: make(map[string]map[string]Scenario)}
}

func (s *InMemoryStore) Get(_ context.Context, accountID, key string) (Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.byAccount[accountID][key]
	if !ok {
		return Scenario{}, ErrNotFound
	}
	return sc, nil
}

func (s *InMemoryStore) Create(_ context.Context, accountID string, sc Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byAccount[accountID] == nil {
		s.byAccount[accountID] = make(map[string]Scenario)
	}
	s.byAccount[accountID][sc.Key] = sc
	return nil
}

func (s *InMemoryStore) CountForAccount(_ context.Context, accountID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byAccount[accountID]), nil
}

func (s *InMemoryStore) Close() error { return nil }
