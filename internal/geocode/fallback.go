package geocode

import (
	"context"
	"log/slog"

	"trustline/internal/geo"
	"trustline/pkg/platform/circuit"
)

// Reverser is any reverse geocoder.
type Reverser interface {
	Reverse(ctx context.Context, c geo.Coordinate) (string, error)
}

// Fallback wraps a Reverser so that a lookup never fails: upstream errors
// and an open circuit both resolve to the formatted coordinate.
type Fallback struct {
	primary Reverser
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewFallback(primary Reverser, breaker *circuit.Breaker, logger *slog.Logger) *Fallback {
	if breaker == nil {
		breaker = circuit.New("geocode")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, breaker: breaker, logger: logger}
}

// Reverse returns the primary's address, or "lat, lng" with six decimals.
func (f *Fallback) Reverse(ctx context.Context, c geo.Coordinate) (string, error) {
	if !f.breaker.Allow() {
		return c.String(), nil
	}
	display, err := f.primary.Reverse(ctx, c)
	if err != nil || display == "" {
		_, change := f.breaker.RecordFailure()
		if change.Opened {
			f.logger.WarnContext(ctx, "geocoder circuit opened", "breaker", f.breaker.Name(), "error", err)
		}
		return c.String(), nil
	}
	if _, change := f.breaker.RecordSuccess(); change.Closed {
		f.logger.InfoContext(ctx, "geocoder circuit closed", "breaker", f.breaker.Name())
	}
	return display, nil
}
