// Package store keeps sliding-window request logs keyed by caller.
package store

import (
	"context"
	"sync"
	"time"

	"trustline/internal/ratelimit/models"
)

// InMemoryBucketStore is a single-process sliding window log.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{buckets: make(map[string][]time.Time), now: time.Now}
}

// WithClock overrides the time source.
func (s *InMemoryBucketStore) WithClock(now func() time.Time) *InMemoryBucketStore {
	s.now = now
	return s
}

// Allow records one request for key if fewer than limit.Requests fall
// inside the window ending now.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string, limit models.Limit) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-limit.Window)
	stamps := s.buckets[key]
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	stamps = stamps[i:]

	if len(stamps) >= limit.Requests {
		s.buckets[key] = stamps
		resetAt := stamps[0].Add(limit.Window)
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit.Requests,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(resetAt, now),
		}, nil
	}

	stamps = append(stamps, now)
	s.buckets[key] = stamps
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - len(stamps),
		ResetAt:   stamps[0].Add(limit.Window),
	}, nil
}

// Reset clears key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	return max(secs, 1)
}
