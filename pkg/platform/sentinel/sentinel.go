package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//   - ErrNotFound: entity does not exist in store
//   - ErrExpired: session outlived its TTL
//   - ErrStale: a write raced a newer generation of the same entity
//   - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrStale       = errors.New("stale write")
	ErrUnavailable = errors.New("unavailable")
)
