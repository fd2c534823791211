package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps call accounting in process for local/dev use.
// Every account is allowed to call; nothing survives a restart.
type InMemoryStore struct {
	mu          sync.RWMutex
	calls       map[string]CallRecord
	transcripts map[string][]TranscriptFragment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		calls:       make(map[string]CallRecord),
		transcripts: make(map[string][]TranscriptFragment),
	}
}

func (s *InMemoryStore) CanStartCall(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (s *InMemoryStore) RecordCallStarted(_ context.Context, rec CallRecord) error {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[rec.CallID] = rec
	return nil
}

func (s *InMemoryStore) RecordCallEnded(_ context.Context, callID, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[callID]
	if !ok {
		return nil
	}
	rec.EndedAt = time.Now().UTC()
	rec.Outcome = outcome
	s.calls[callID] = rec
	return nil
}

func (s *InMemoryStore) Save(_ context.Context, frag TranscriptFragment) error {
	if frag.CreatedAt.IsZero() {
		frag.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[frag.CallID] = append(s.transcripts[frag.CallID], frag)
	return nil
}

// Call returns the recorded state of one call, for tests and inspection.
func (s *InMemoryStore) Call(callID string) (CallRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.calls[callID]
	return rec, ok
}

// Transcript returns saved fragments for one call.
func (s *InMemoryStore) Transcript(callID string) []TranscriptFragment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TranscriptFragment, len(s.transcripts[callID]))
	copy(out, s.transcripts[callID])
	return out
}

func (s *InMemoryStore) Close() error { return nil }
