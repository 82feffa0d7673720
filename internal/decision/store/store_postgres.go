package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustline/internal/decision"
	"trustline/internal/verification/models"
	id "trustline/pkg/domain"
	txcontext "trustline/pkg/platform/tx"
)

// PostgresStore persists verdicts in verification_results.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL-backed verdict store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Save inserts a verdict. A session decided twice keeps its latest verdict.
func (s *PostgresStore) Save(ctx context.Context, record decision.Record) error {
	r := record.Result
	var analysis []byte
	patterns := []string{}
	if r.LocationHistoryAnalysis != nil {
		var err error
		analysis, err = json.Marshal(r.LocationHistoryAnalysis)
		if err != nil {
			return fmt.Errorf("marshal history analysis: %w", err)
		}
		patterns = r.LocationHistoryAnalysis.SuspiciousPatterns
	}

	query := `
		INSERT INTO verification_results (
			session_id, user_id, profile, trust_level, points, message,
			address_valid, gps_match, photo_exif_match, location_history_match,
			distance_km, suspicious_patterns, history_analysis, decided_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (session_id) DO UPDATE SET
			trust_level = EXCLUDED.trust_level,
			points = EXCLUDED.points,
			message = EXCLUDED.message,
			address_valid = EXCLUDED.address_valid,
			gps_match = EXCLUDED.gps_match,
			photo_exif_match = EXCLUDED.photo_exif_match,
			location_history_match = EXCLUDED.location_history_match,
			distance_km = EXCLUDED.distance_km,
			suspicious_patterns = EXCLUDED.suspicious_patterns,
			history_analysis = EXCLUDED.history_analysis,
			decided_at = EXCLUDED.decided_at
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.SessionID),
		uuid.UUID(record.UserID),
		string(record.Profile),
		string(r.TrustLevel),
		r.Points,
		r.Message,
		r.AddressValid,
		r.GPSMatch,
		r.PhotoEXIFMatch,
		r.LocationHistoryMatch,
		r.Distance,
		pq.Array(patterns),
		analysis,
		record.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("save verification result: %w", err)
	}
	return nil
}

// ListByUser returns the user's verdicts, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]decision.Record, error) {
	query := `
		SELECT session_id, profile, trust_level, points, message,
			   address_valid, gps_match, photo_exif_match, location_history_match,
			   distance_km, history_analysis, decided_at
		FROM verification_results
		WHERE user_id = $1
		ORDER BY decided_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query verification results: %w", err)
	}
	defer rows.Close()

	var records []decision.Record
	for rows.Next() {
		var (
			rec       decision.Record
			sessionID uuid.UUID
			profile   string
			level     string
			analysis  []byte
		)
		r := &rec.Result
		if err := rows.Scan(&sessionID, &profile, &level, &r.Points, &r.Message,
			&r.AddressValid, &r.GPSMatch, &r.PhotoEXIFMatch, &r.LocationHistoryMatch,
			&r.Distance, &analysis, &rec.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan verification result: %w", err)
		}
		rec.SessionID = id.SessionID(sessionID)
		rec.UserID = userID
		rec.Profile = decision.ProfileName(profile)
		r.TrustLevel = models.TrustLevel(level)
		r.IsValid = r.AddressValid
		if len(analysis) > 0 {
			r.LocationHistoryAnalysis = &models.LocationHistoryAnalysis{}
			if err := json.Unmarshal(analysis, r.LocationHistoryAnalysis); err != nil {
				return nil, fmt.Errorf("decode history analysis: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification results: %w", err)
	}
	return records, nil
}
