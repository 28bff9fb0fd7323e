package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PGStore persists profiles and measurements in PostgreSQL.
type PGStore struct {
	db DB
}

func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

// InsertProfile writes one profile row and returns its generated identifier.
// A hit on the float/date/time uniqueness constraint maps to
// ErrDuplicateProfile.
func (s *PGStore) InsertProfile(ctx context.Context, p Profile) (int64, error) {
	ts := p.Timestamp.UTC()
	date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	timeOfDay := pgtype.Time{
		Microseconds: int64(ts.Hour())*3600_000_000 +
			int64(ts.Minute())*60_000_000 +
			int64(ts.Second())*1_000_000,
		Valid: true,
	}

	var profileID int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO profiles (latitude, longitude, profile_date, profile_time, float_wmo_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING profile_id`,
		p.Latitude, p.Longitude, date, timeOfDay, p.FloatWMOID,
	).Scan(&profileID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: float %d at %s", ErrDuplicateProfile, p.FloatWMOID, ts)
		}
		return 0, fmt.Errorf("inserting profile: %w", err)
	}
	return profileID, nil
}

// InsertMeasurements bulk-copies the measurement rows for one profile.
func (s *PGStore) InsertMeasurements(ctx context.Context, profileID int64, ms []Measurement) error {
	rows := make([][]any, len(ms))
	for i, m := range ms {
		rows[i] = []any{
			profileID,
			m.PressureDbar,
			m.TemperatureCelsius,
			m.SalinityPSU,
			m.DoxyUmolKg,
			m.ChlaMgM3,
			m.NitrateUmolKg,
		}
	}

	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"measurements"},
		[]string{
			"profile_id", "pressure_dbar", "temperature_celsius", "salinity_psu",
			"doxy_umol_kg", "chla_mg_m3", "nitrate_umol_kg",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copying measurements: %w", err)
	}
	return nil
}
