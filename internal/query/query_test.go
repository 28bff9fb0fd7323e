package query

import (
	"context"
	"math/big"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/oceanlab/argonaut/internal/log"
)

type failQuerier struct{}

func (failQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("Query should not be reached")
}

func TestRun_RejectsNonSelect(t *testing.T) {
	e := NewExecutor(failQuerier{}, 500, log.NewNop())

	for _, sql := range []string{
		"DROP TABLE profiles",
		"UPDATE profiles SET latitude = 0",
		"",
		"-- SELECT hidden in a comment",
	} {
		if _, err := e.Run(context.Background(), sql); err != ErrNotSelect {
			t.Errorf("Run(%q) = %v, want ErrNotSelect", sql, err)
		}
	}
}

func TestResult_HasColumns(t *testing.T) {
	r := &Result{Columns: []string{"profile_id", "latitude", "longitude"}}

	if !r.HasColumns("profile_id") {
		t.Error("HasColumns(profile_id) = false")
	}
	if !r.HasColumns("latitude", "longitude") {
		t.Error("HasColumns(latitude, longitude) = false")
	}
	if r.HasColumns("temperature_celsius") {
		t.Error("HasColumns(temperature_celsius) = true")
	}
	if !r.HasGeo() {
		t.Error("HasGeo() = false with latitude and longitude present")
	}

	var nilResult *Result
	if nilResult.HasColumns("anything") {
		t.Error("nil result claims columns")
	}
	if !nilResult.Empty() {
		t.Error("nil result is not empty")
	}
}

func TestResult_ProfileIDs(t *testing.T) {
	r := &Result{
		Columns: []string{"profile_id", "avg_temperature_celsius"},
		Rows: []map[string]any{
			{"profile_id": int64(10), "avg_temperature_celsius": 18.2},
			{"profile_id": int32(11), "avg_temperature_celsius": 17.9},
			{"profile_id": float64(12), "avg_temperature_celsius": 16.1},
			{"profile_id": nil, "avg_temperature_celsius": 15.0},
		},
	}

	if got, want := r.ProfileIDs(), []int64{10, 11, 12}; !reflect.DeepEqual(got, want) {
		t.Errorf("ProfileIDs() = %v, want %v", got, want)
	}

	noIDs := &Result{Columns: []string{"latitude"}}
	if got := noIDs.ProfileIDs(); got != nil {
		t.Errorf("ProfileIDs() without column = %v, want nil", got)
	}
}

func TestNormalizeValue(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(1820), Exp: -2, Valid: true}
	if got := normalizeValue(n); got != 18.2 {
		t.Errorf("normalizeValue(numeric 18.20) = %v, want 18.2", got)
	}
	if got := normalizeValue(pgtype.Numeric{}); got != nil {
		t.Errorf("normalizeValue(null numeric) = %v, want nil", got)
	}
	if got := normalizeValue(int64(7)); got != int64(7) {
		t.Errorf("normalizeValue(int64) = %v, want 7", got)
	}
}
