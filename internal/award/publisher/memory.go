package publisher

import (
	"context"
	"slices"
	"sync"

	"trustline/internal/award/models"
)

// InMemoryPublisher records grants for tests and single-node runs without a
// broker.
type InMemoryPublisher struct {
	mu     sync.Mutex
	grants []models.Grant
}

func NewInMemory() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Publish(_ context.Context, grant models.Grant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grants = append(p.grants, grant)
	return nil
}

// Grants returns everything published so far.
func (p *InMemoryPublisher) Grants() []models.Grant {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.grants)
}
