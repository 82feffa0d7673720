// Package evidence simulates the two remote checks that feed the decision
// engine: photo EXIF extraction and address-database lookup.
package evidence

import (
	"context"
	"time"

	"trustline/internal/geo"
	"trustline/internal/noise"
	"trustline/internal/verification/latency"
	"trustline/internal/verification/models"
	dErrors "trustline/pkg/domain-errors"
)

const (
	// DefaultEXIFLatency mirrors the delay of reading image metadata.
	DefaultEXIFLatency = time.Second

	exifJitterDeg = 0.0005
)

// Option configures a simulator.
type Option func(*config)

type config struct {
	latency time.Duration
	now     func() time.Time
}

// WithLatency overrides the simulated delay. Zero disables it.
func WithLatency(d time.Duration) Option {
	return func(c *config) {
		c.latency = d
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

func newConfig(defaultLatency time.Duration, opts []Option) config {
	c := config{latency: defaultLatency, now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// EXIFSimulator stands in for EXIF parsing: a photo is assumed to have been
// taken close to the device's GPS fix.
type EXIFSimulator struct {
	src noise.Source
	cfg config
}

// NewEXIFSimulator returns a simulator drawing jitter from src.
func NewEXIFSimulator(src noise.Source, opts ...Option) *EXIFSimulator {
	return &EXIFSimulator{src: src, cfg: newConfig(DefaultEXIFLatency, opts)}
}

// Extract returns the fix perturbed by up to ±0.0005° per axis, or null
// coordinates when there is no fix. The timestamp is always the extraction time.
func (s *EXIFSimulator) Extract(ctx context.Context, photo models.Photo, gpsFix *geo.Coordinate) (*models.PhotoEXIF, error) {
	if photo.Digest == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "photo is required")
	}
	if err := latency.Wait(ctx, s.cfg.latency); err != nil {
		return nil, err
	}

	ts := s.cfg.now()
	exif := &models.PhotoEXIF{Timestamp: &ts}
	if gpsFix != nil {
		c := noise.Jitter(s.src, *gpsFix, exifJitterDeg)
		exif.Latitude = &c.Lat
		exif.Longitude = &c.Lng
	}
	return exif, nil
}
