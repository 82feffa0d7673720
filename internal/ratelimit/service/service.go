// Package service applies per-IP and per-user sliding-window limits.
package service

import (
	"context"
	"fmt"

	"trustline/internal/ratelimit/metrics"
	"trustline/internal/ratelimit/models"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
)

// BucketStore admits or rejects one request against a limit.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.RateLimitResult, error)
}

type Service struct {
	store   BucketStore
	limits  map[models.EndpointClass]models.Limit
	metrics *metrics.Metrics
}

type Option func(*Service)

// WithLimits overrides individual class limits; unlisted classes keep the
// defaults.
func WithLimits(limits map[models.EndpointClass]models.Limit) Option {
	return func(s *Service) {
		for class, l := range limits {
			if l.Requests > 0 && l.Window > 0 {
				s.limits[class] = l
			}
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store BucketStore, opts ...Option) *Service {
	s := &Service{store: store, limits: make(map[models.EndpointClass]models.Limit, len(models.DefaultLimits))}
	for class, l := range models.DefaultLimits {
		s.limits[class] = l
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check consumes one request from the IP bucket and, when userID is set, from
// the user bucket. The IP bucket is checked first so an exhausted IP does not
// drain the user's allowance.
func (s *Service) Check(ctx context.Context, ip string, userID id.UserID, class models.EndpointClass) (*models.RateLimitResult, error) {
	limit, ok := s.limits[class]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("no rate limit configured for class %q", class))
	}

	ipResult, err := s.store.Allow(ctx, fmt.Sprintf("ip:%s:%s", class, ip), limit)
	if err != nil {
		s.metrics.IncStoreErrors()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable")
	}
	if !ipResult.Allowed {
		s.metrics.IncRejected(string(class), "ip")
		return ipResult, nil
	}
	if userID.IsNil() {
		return ipResult, nil
	}

	userResult, err := s.store.Allow(ctx, fmt.Sprintf("user:%s:%s", class, userID), limit)
	if err != nil {
		s.metrics.IncStoreErrors()
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable")
	}
	if !userResult.Allowed {
		s.metrics.IncRejected(string(class), "user")
		return userResult, nil
	}
	if userResult.Remaining < ipResult.Remaining {
		return userResult, nil
	}
	return ipResult, nil
}
