package decision

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"trustline/internal/verification/models"
)

// Latencies records how long each evidence source took.
type Latencies struct {
	Exif      time.Duration
	AddressDB time.Duration
}

// GatheredEvidence holds the outputs of the evidence sources.
type GatheredEvidence struct {
	Exif              *models.PhotoEXIF
	AddressValidation *models.AddressValidation
	Latencies         Latencies
}

// gatherEvidence fetches EXIF and address evidence in parallel under a
// shared deadline. The first failure cancels the other fetch.
func (s *Service) gatherEvidence(ctx context.Context, req EvaluateRequest) (*GatheredEvidence, error) {
	ctx, cancel := context.WithTimeout(ctx, s.evidenceTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	evidence := &GatheredEvidence{}

	if req.Profile.UsePhoto {
		g.Go(func() error {
			start := time.Now()
			exif, err := s.exif.Extract(ctx, *req.Photo, req.GPSFix)
			evidence.Latencies.Exif = time.Since(start)
			s.metrics.ObserveEvidenceLatency("exif", evidence.Latencies.Exif)
			if err != nil {
				return err
			}
			evidence.Exif = exif
			return nil
		})
	}

	g.Go(func() error {
		start := time.Now()
		validation, err := s.addresses.Validate(ctx, req.Address, req.GPSFix)
		evidence.Latencies.AddressDB = time.Since(start)
		s.metrics.ObserveEvidenceLatency("address_db", evidence.Latencies.AddressDB)
		if err != nil {
			return err
		}
		evidence.AddressValidation = validation
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evidence, nil
}
