package archive

import (
	"context"
	"sync"
)

// memoryStore keeps records in an in-process map, grouped by session.
type memoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string][]Record)}
}

// Append implements Store.
func (s *memoryStore) Append(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = append(s.records[rec.SessionID], *rec)
	return nil
}

// List implements Store.
func (s *memoryStore) List(ctx context.Context, sessionID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.records[sessionID]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}
