// Package store holds verification session stores. Sessions are short-lived:
// every store expires them after a TTL and rejects writes from an older
// generation with sentinel.ErrStale.
package store

import (
	"context"
	"sync"
	"time"

	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	"trustline/pkg/platform/sentinel"
)

// DefaultTTL bounds how long an idle session survives.
const DefaultTTL = 30 * time.Minute

type memoryEntry struct {
	session   models.Session
	expiresAt time.Time
}

// InMemoryStore keeps sessions in process memory.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[id.SessionID]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithMemoryTTL overrides DefaultTTL.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *InMemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMemoryClock overrides the expiry clock.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.now = now
	}
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		sessions: make(map[id.SessionID]memoryEntry),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores a copy of session and refreshes its TTL.
func (s *InMemoryStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if cur, ok := s.sessions[session.ID]; ok && now.Before(cur.expiresAt) && cur.session.Generation > session.Generation {
		return sentinel.ErrStale
	}
	s.sessions[session.ID] = memoryEntry{session: clone(session), expiresAt: now.Add(s.ttl)}
	return nil
}

// Get returns a copy of the session.
func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, sessionID)
		return nil, sentinel.ErrNotFound
	}
	out := clone(&entry.session)
	return &out, nil
}

// Delete removes the session.
func (s *InMemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Sweep drops expired sessions and reports how many were removed.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for sid, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, sid)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps expired sessions every interval until ctx is cancelled.
func (s *InMemoryStore) StartCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// clone deep-copies the parts callers may mutate.
func clone(in *models.Session) models.Session {
	out := *in
	if in.Address != nil {
		a := *in.Address
		out.Address = &a
	}
	if in.GPS != nil {
		g := *in.GPS
		out.GPS = &g
	}
	if in.Photo != nil {
		p := *in.Photo
		out.Photo = &p
	}
	if in.Device != nil {
		d := *in.Device
		out.Device = &d
	}
	if in.History != nil {
		out.History = append([]models.LocationHistoryEntry(nil), in.History...)
	}
	if in.Result != nil {
		r := *in.Result
		out.Result = &r
	}
	return out
}
