package service

import (
	"context"
	"encoding/hex"
	"io"
	"mime"
	"strings"

	"golang.org/x/crypto/blake2b"

	"trustline/internal/geo"
	"trustline/internal/verification/flow"
	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	dErrors "trustline/pkg/domain-errors"
	"trustline/pkg/requestcontext"
)

// DefaultMaxPhotoBytes is the largest accepted photo upload.
const DefaultMaxPhotoBytes = 10 << 20

// PhotoUpload is an incoming photo. Content is hashed and dropped; only the
// digest is kept on the session.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// SetGPS records the device fix at the GPS step. The display address is
// resolved before the session is locked and never fails the step.
func (s *Service) SetGPS(ctx context.Context, userID id.UserID, sessionID id.SessionID, c geo.Coordinate, accuracyM float64) (*models.Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if accuracyM < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "accuracy must not be negative")
	}
	if err := s.precheck(ctx, userID, sessionID, flow.StepGPS); err != nil {
		return nil, err
	}

	display := s.reverseGeocode(ctx, c)
	return s.mutate(ctx, userID, sessionID, func(session *models.Session, m flow.Machine) error {
		if err := m.Require(session.Step, flow.StepGPS); err != nil {
			return err
		}
		session.GPS = &models.GPSFix{
			Coordinate: c,
			AccuracyM:  accuracyM,
			Address:    display,
			CapturedAt: requestcontext.Now(ctx),
		}
		return advance(session, m)
	})
}

func (s *Service) reverseGeocode(ctx context.Context, c geo.Coordinate) string {
	if s.geocoder == nil {
		return c.String()
	}
	display, err := s.geocoder.Reverse(ctx, c)
	if err != nil || display == "" {
		s.logger.WarnContext(ctx, "reverse geocoding failed",
			"coordinate", c.String(),
			"error", err,
		)
		return c.String()
	}
	return display
}

// UploadPhoto accepts an image at the photo step.
func (s *Service) UploadPhoto(ctx context.Context, userID id.UserID, sessionID id.SessionID, upload PhotoUpload) (*models.Session, error) {
	mediaType, _, err := mime.ParseMediaType(upload.ContentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, dErrors.New(dErrors.CodeUnsupportedMedia, "Please upload an image file")
	}
	if err := s.precheck(ctx, userID, sessionID, flow.StepPhoto); err != nil {
		return nil, err
	}

	digest, size, err := s.digest(upload.Content)
	if err != nil {
		return nil, err
	}
	photo := &models.Photo{
		Digest:      digest,
		ContentType: mediaType,
		Size:        size,
		Filename:    upload.Filename,
	}
	var device *models.CaptureDevice
	if d, ok := requestcontext.CaptureDevice(ctx); ok {
		device = &models.CaptureDevice{Browser: d.Browser, OS: d.OS, Mobile: d.Mobile}
	}

	session, err := s.mutate(ctx, userID, sessionID, func(session *models.Session, m flow.Machine) error {
		if err := m.Require(session.Step, flow.StepPhoto); err != nil {
			return err
		}
		session.Photo = photo
		session.Device = device
		return advance(session, m)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObservePhotoBytes(size)
	return session, nil
}

func (s *Service) digest(r io.Reader) (string, int64, error) {
	if r == nil {
		return "", 0, dErrors.New(dErrors.CodeValidation, "photo is required")
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash photo")
	}
	n, err := io.Copy(h, io.LimitReader(r, s.maxPhotoBytes+1))
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read photo")
	}
	if n > s.maxPhotoBytes {
		return "", 0, dErrors.New(dErrors.CodePayloadTooLarge, "Image size must be less than 10MB")
	}
	if n == 0 {
		return "", 0, dErrors.New(dErrors.CodeValidation, "photo is empty")
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// precheck fails fast before slow work; mutate checks again under the lock.
func (s *Service) precheck(ctx context.Context, userID id.UserID, sessionID id.SessionID, want flow.Step) error {
	session, machine, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	return machine.Require(session.Step, want)
}
