package history

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"

	"trustline/internal/geo"
	"trustline/internal/verification/latency"
	"trustline/internal/verification/models"
)

const (
	homeRadiusKm         = 0.1
	recentWindow         = 7
	recentActivityLimit  = 10
	diversityRatio       = 0.9
	diversityPenalty     = 5.0
	impossibleTravelKm   = 2000.0
	impossibleTravelSpan = time.Hour
	impossibleTravelCost = 10.0

	// Scores are floored at 70, which keeps nearly every trace consistent.
	// Revisit together with the isConsistent threshold.
	minConsistencyScore = 70.0
	maxConsistencyScore = 100.0
	consistentAbove     = 50.0
	maxToleratedFlags   = 1

	// DefaultAnalyzeLatency mirrors the delay of a remote history service.
	DefaultAnalyzeLatency = 2 * time.Second
)

// ErrEmptyHistory is returned when there is nothing to analyze.
var ErrEmptyHistory = errors.New("location history is empty")

// Analyzer scores traces after a simulated service delay.
type Analyzer struct {
	latency time.Duration
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithLatency overrides the simulated delay. Zero disables it.
func WithLatency(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		a.latency = d
	}
}

// NewAnalyzer returns an analyzer with DefaultAnalyzeLatency unless overridden.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{latency: DefaultAnalyzeLatency}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze waits out the simulated delay and scores the trace. homeAddress is
// carried for parity with remote providers and does not affect the score.
func (a *Analyzer) Analyze(ctx context.Context, history []models.LocationHistoryEntry, homeAddress string, home geo.Coordinate) (*models.LocationHistoryAnalysis, error) {
	_ = homeAddress
	if err := latency.Wait(ctx, a.latency); err != nil {
		return nil, err
	}
	return Analyze(history, home)
}

// Analyze scores history against home. It is pure and deterministic.
func Analyze(history []models.LocationHistoryEntry, home geo.Coordinate) (*models.LocationHistoryAnalysis, error) {
	if len(history) == 0 {
		return nil, ErrEmptyHistory
	}

	ordered := slices.Clone(history)
	SortNewestFirst(ordered)

	homeFrequency := 100 * float64(countAtHome(ordered, home)) / float64(len(ordered))

	score := homeFrequencyScore(homeFrequency)
	score += recencyScore(ordered, home)

	patterns := []string{}
	if diverse(ordered) {
		patterns = append(patterns, models.PatternExcessiveDiversity)
		score -= diversityPenalty
	}
	for range impossibleHops(ordered) {
		patterns = append(patterns, models.PatternImpossibleTravel)
		score -= impossibleTravelCost
	}

	score = math.Max(minConsistencyScore, math.Min(maxConsistencyScore, score))

	return &models.LocationHistoryAnalysis{
		TotalEntries:       len(ordered),
		HomeFrequency:      homeFrequency,
		ConsistencyScore:   score,
		RecentActivity:     slices.Clone(ordered[:min(recentActivityLimit, len(ordered))]),
		SuspiciousPatterns: patterns,
		IsConsistent:       score > consistentAbove && len(patterns) <= maxToleratedFlags,
	}, nil
}

func homeFrequencyScore(freq float64) float64 {
	switch {
	case freq > 30:
		return 40
	case freq > 15:
		return 35
	default:
		return math.Max(25, freq*0.8)
	}
}

func recencyScore(ordered []models.LocationHistoryEntry, home geo.Coordinate) float64 {
	recent := ordered[:min(recentWindow, len(ordered))]
	fraction := float64(countAtHome(recent, home)) / float64(len(recent))
	return math.Max(20, fraction*30)
}

func countAtHome(entries []models.LocationHistoryEntry, home geo.Coordinate) int {
	n := 0
	for _, e := range entries {
		if geo.DistanceKm(e.Coordinate, home) < homeRadiusKm {
			n++
		}
	}
	return n
}

func diverse(entries []models.LocationHistoryEntry) bool {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[geo.Key3(e.Coordinate)] = struct{}{}
	}
	return float64(len(seen)) > float64(len(entries))*diversityRatio
}

// impossibleHops yields the index of every adjacent pair (newest-first order)
// that covers more than 2000 km in under an hour.
func impossibleHops(ordered []models.LocationHistoryEntry) func(yield func(int) bool) {
	return func(yield func(int) bool) {
		for i := 1; i < len(ordered); i++ {
			newer, older := ordered[i-1], ordered[i]
			if newer.Timestamp.Sub(older.Timestamp) >= impossibleTravelSpan {
				continue
			}
			if geo.DistanceKm(older.Coordinate, newer.Coordinate) <= impossibleTravelKm {
				continue
			}
			if !yield(i) {
				return
			}
		}
	}
}
