package store

import (
	"context"
	"slices"
	"sync"

	"trustline/internal/decision"
	id "trustline/pkg/domain"
)

// InMemoryStore keeps verdicts per user for tests and single-node runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.UserID][]decision.Record
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.UserID][]decision.Record)}
}

// Save appends a record.
func (s *InMemoryStore) Save(_ context.Context, record decision.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = append(s.records[record.UserID], record)
	return nil
}

// ListByUser returns the user's records, newest first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]decision.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.records[userID])
	slices.Reverse(out)
	return out, nil
}
