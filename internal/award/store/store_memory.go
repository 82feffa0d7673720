// Package store holds trust-score ledgers: one breakdown per user in which a
// new award replaces the category's previous value.
package store

import (
	"context"
	"sync"

	"trustline/internal/award/models"
	id "trustline/pkg/domain"
)

// InMemoryLedger keeps breakdowns in process memory.
type InMemoryLedger struct {
	mu     sync.RWMutex
	scores map[id.UserID]models.Breakdown
}

// NewInMemoryLedger creates an empty ledger.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{scores: make(map[id.UserID]models.Breakdown)}
}

// Set replaces one category and returns the updated breakdown.
func (l *InMemoryLedger) Set(_ context.Context, userID id.UserID, category models.Category, points int) (models.Breakdown, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.scores[userID]
	b.Set(category, points)
	l.scores[userID] = b
	return b, nil
}

// Get returns the user's breakdown; unknown users have an empty one.
func (l *InMemoryLedger) Get(_ context.Context, userID id.UserID) (models.Breakdown, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.scores[userID], nil
}
