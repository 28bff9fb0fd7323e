package ingest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/oceanlab/argonaut/internal/log"
)

func f(v float64) *float64 { return &v }

type fakeReader struct {
	profiles []Profile
	err      error
}

func (r fakeReader) ReadProfiles(string) ([]Profile, error) {
	return r.profiles, r.err
}

type fakeStore struct {
	nextID     int64
	insertErrs map[int]error // by call index

	profileCalls     int
	measurementCalls []int // rows per call
}

func (s *fakeStore) InsertProfile(_ context.Context, _ Profile) (int64, error) {
	idx := s.profileCalls
	s.profileCalls++
	if err, ok := s.insertErrs[idx]; ok {
		return 0, err
	}
	s.nextID++
	return s.nextID, nil
}

func (s *fakeStore) InsertMeasurements(_ context.Context, _ int64, ms []Measurement) error {
	s.measurementCalls = append(s.measurementCalls, len(ms))
	return nil
}

func profileWith(ms ...Measurement) Profile {
	return Profile{
		FloatWMOID:   5904297,
		Latitude:     -33.9,
		Longitude:    18.4,
		Timestamp:    time.Date(2025, 1, 2, 10, 30, 0, 0, time.UTC),
		Measurements: ms,
	}
}

func TestIngestFile(t *testing.T) {
	reader := fakeReader{profiles: []Profile{
		profileWith(
			Measurement{PressureDbar: f(5.1), TemperatureCelsius: f(18.2), SalinityPSU: f(35.1)},
			Measurement{}, // all fields missing, dropped
			Measurement{PressureDbar: f(10.3), TemperatureCelsius: f(17.8), SalinityPSU: f(35.0)},
		),
		profileWith(Measurement{PressureDbar: f(5.0)}),
	}}
	store := &fakeStore{}

	stats, err := New(reader, store, log.NewNop()).IngestFile(context.Background(), "prof.nc")
	if err != nil {
		t.Fatalf("IngestFile() error: %v", err)
	}

	want := Stats{Profiles: 2, Inserted: 2, Measurements: 3}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(store.measurementCalls) != 2 || store.measurementCalls[0] != 2 {
		t.Errorf("measurement calls = %v, want [2 1]", store.measurementCalls)
	}
}

func TestIngestFile_SkipsDuplicates(t *testing.T) {
	reader := fakeReader{profiles: []Profile{
		profileWith(Measurement{PressureDbar: f(5.1)}),
		profileWith(Measurement{PressureDbar: f(5.2)}),
	}}
	store := &fakeStore{insertErrs: map[int]error{
		0: ErrDuplicateProfile,
	}}

	stats, err := New(reader, store, log.NewNop()).IngestFile(context.Background(), "prof.nc")
	if err != nil {
		t.Fatalf("IngestFile() error: %v", err)
	}

	if stats.Skipped != 1 || stats.Inserted != 1 {
		t.Errorf("stats = %+v, want 1 skipped and 1 inserted", stats)
	}
}

func TestIngestFile_ContinuesAfterProfileError(t *testing.T) {
	reader := fakeReader{profiles: []Profile{
		profileWith(Measurement{PressureDbar: f(5.1)}),
		profileWith(Measurement{PressureDbar: f(5.2)}),
		profileWith(Measurement{PressureDbar: f(5.3)}),
	}}
	store := &fakeStore{insertErrs: map[int]error{
		1: errors.New("connection reset"),
	}}

	stats, err := New(reader, store, log.NewNop()).IngestFile(context.Background(), "prof.nc")
	if err != nil {
		t.Fatalf("IngestFile() error: %v", err)
	}

	if stats.Failed != 1 || stats.Inserted != 2 {
		t.Errorf("stats = %+v, want 1 failed and 2 inserted", stats)
	}
}

func TestIngestFile_EmptyProfileWritesNoMeasurements(t *testing.T) {
	reader := fakeReader{profiles: []Profile{profileWith(Measurement{}, Measurement{})}}
	store := &fakeStore{}

	stats, err := New(reader, store, log.NewNop()).IngestFile(context.Background(), "prof.nc")
	if err != nil {
		t.Fatalf("IngestFile() error: %v", err)
	}

	if stats.Inserted != 1 || stats.Measurements != 0 {
		t.Errorf("stats = %+v, want the profile kept with no measurements", stats)
	}
	if len(store.measurementCalls) != 0 {
		t.Errorf("measurement calls = %v, want none", store.measurementCalls)
	}
}

func TestIngestFile_ReaderError(t *testing.T) {
	readErr := errors.New("not a netcdf file")
	_, err := New(fakeReader{err: readErr}, &fakeStore{}, log.NewNop()).
		IngestFile(context.Background(), "bad.nc")
	if !errors.Is(err, readErr) {
		t.Fatalf("IngestFile() error = %v, want wrapped reader error", err)
	}
}

func TestMeasurementEmpty(t *testing.T) {
	if !(Measurement{}).Empty() {
		t.Error("zero measurement not Empty")
	}
	if (Measurement{ChlaMgM3: f(0.2)}).Empty() {
		t.Error("measurement with one optional field reads Empty")
	}
}

func TestJuldToTime(t *testing.T) {
	got := juldToTime(27395.4375) // 1950-01-01 + 27395 days + 10h30m
	want := time.Date(2025, 1, 2, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("juldToTime() = %v, want %v", got, want)
	}
}

func TestCell(t *testing.T) {
	matrix := [][]float64{{5.1, math.NaN(), 99999.0}}

	if v := cell(matrix, 0, 0); v == nil || *v != 5.1 {
		t.Errorf("cell(0,0) = %v, want 5.1", v)
	}
	if v := cell(matrix, 0, 1); v != nil {
		t.Errorf("cell(NaN) = %v, want nil", *v)
	}
	if v := cell(matrix, 0, 2); v != nil {
		t.Errorf("cell(fill) = %v, want nil", *v)
	}
	if v := cell(matrix, 0, 3); v != nil {
		t.Errorf("cell out of range = %v, want nil", *v)
	}
	if v := cell(matrix, 1, 0); v != nil {
		t.Errorf("cell out of rows = %v, want nil", *v)
	}
}
