// Package ingest loads ARGO instrument NetCDF files into the relational
// schema the chat pipeline queries against.
//
// One file holds one float's profiles. Per profile: split the timestamp into
// date and time parts, insert a profile row, then insert the measurement rows
// bound to its generated identifier. Duplicate profiles (same float, date and
// time) are skipped, and any other per-profile error is logged and skipped
// too; a single bad profile never aborts the file.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oceanlab/argonaut/internal/log"
)

// ErrDuplicateProfile marks a profile already present in the database.
var ErrDuplicateProfile = errors.New("duplicate profile")

// Measurement is one depth level of a profile. Nil fields are missing in the
// source file and become NULL columns.
type Measurement struct {
	PressureDbar       *float64
	TemperatureCelsius *float64
	SalinityPSU        *float64
	DoxyUmolKg         *float64
	ChlaMgM3           *float64
	NitrateUmolKg      *float64
}

// Empty reports whether every field is missing. Empty measurements carry no
// information and are dropped before insert.
func (m Measurement) Empty() bool {
	return m.PressureDbar == nil && m.TemperatureCelsius == nil && m.SalinityPSU == nil &&
		m.DoxyUmolKg == nil && m.ChlaMgM3 == nil && m.NitrateUmolKg == nil
}

// Profile is one vertical profile cycle of a float.
type Profile struct {
	FloatWMOID   int64
	Latitude     float64
	Longitude    float64
	Timestamp    time.Time
	Measurements []Measurement
}

// Reader parses an instrument file into profiles.
type Reader interface {
	ReadProfiles(path string) ([]Profile, error)
}

// Store persists profiles and measurements.
type Store interface {
	// InsertProfile inserts one profile row and returns its generated
	// identifier. Returns ErrDuplicateProfile (possibly wrapped) when the
	// float/date/time uniqueness constraint fires.
	InsertProfile(ctx context.Context, p Profile) (int64, error)
	// InsertMeasurements inserts the measurement rows for a profile.
	InsertMeasurements(ctx context.Context, profileID int64, ms []Measurement) error
}

// Stats summarizes one ingestion run.
type Stats struct {
	Profiles     int // profiles found in the file
	Inserted     int // profile rows written
	Skipped      int // duplicates
	Failed       int // profiles dropped on error
	Measurements int // measurement rows written
}

// Ingestor drives one file through the reader and store.
type Ingestor struct {
	reader Reader
	store  Store
	logger log.Logger
}

func New(reader Reader, store Store, logger log.Logger) *Ingestor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingestor{reader: reader, store: store, logger: logger}
}

// IngestFile loads one NetCDF file. The returned error covers file-level
// failures only; per-profile problems are counted in Stats and logged.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (Stats, error) {
	profiles, err := ing.reader.ReadProfiles(path)
	if err != nil {
		return Stats{}, fmt.Errorf("reading %s: %w", path, err)
	}

	stats := Stats{Profiles: len(profiles)}
	if len(profiles) > 0 {
		ing.logger.Info("processing profiles",
			"file", path,
			"profiles", len(profiles),
			"float_wmo_id", profiles[0].FloatWMOID)
	}

	for i, p := range profiles {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		n, err := ing.ingestProfile(ctx, p)
		switch {
		case errors.Is(err, ErrDuplicateProfile):
			stats.Skipped++
			ing.logger.Info("skipping duplicate profile",
				"index", i, "timestamp", p.Timestamp)
		case err != nil:
			stats.Failed++
			ing.logger.Warn("profile failed, continuing",
				"index", i, "error", err)
		default:
			stats.Inserted++
			stats.Measurements += n
		}
	}

	ing.logger.Info("ingestion complete",
		"file", path,
		"inserted", stats.Inserted,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"measurements", stats.Measurements)
	return stats, nil
}

func (ing *Ingestor) ingestProfile(ctx context.Context, p Profile) (int, error) {
	profileID, err := ing.store.InsertProfile(ctx, p)
	if err != nil {
		return 0, err
	}

	kept := make([]Measurement, 0, len(p.Measurements))
	for _, m := range p.Measurements {
		if !m.Empty() {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return 0, nil
	}

	if err := ing.store.InsertMeasurements(ctx, profileID, kept); err != nil {
		return 0, fmt.Errorf("inserting measurements for profile %d: %w", profileID, err)
	}
	return len(kept), nil
}
