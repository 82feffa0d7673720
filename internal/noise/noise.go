// Package noise supplies the random draws behind every simulated signal.
// Production wiring uses a time-seeded source; tests and the CLI pass a seed
// so traces and jitter are reproducible.
package noise

import (
	"math/rand/v2"
	"sync"
	"time"

	"trustline/internal/geo"
)

// Source is the randomness consumed by simulators.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a deterministic source seeded with seed. Safe for concurrent use.
func New(seed uint64) Source {
	return &lockedSource{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a source seeded from the wall clock.
func NewRandom() Source {
	return New(uint64(time.Now().UnixNano()))
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}

// Uniform returns a draw in [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Jitter perturbs each axis of c independently by U[-halfWidth, +halfWidth) degrees.
func Jitter(src Source, c geo.Coordinate, halfWidth float64) geo.Coordinate {
	return geo.Coordinate{
		Lat: c.Lat + (src.Float64()-0.5)*2*halfWidth,
		Lng: c.Lng + (src.Float64()-0.5)*2*halfWidth,
	}
}

// Chance reports true with probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}

// Pick returns a uniformly chosen element of items.
func Pick[T any](src Source, items []T) T {
	return items[src.IntN(len(items))]
}
