package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oceanlab/argonaut/internal/ingest"
	"github.com/oceanlab/argonaut/internal/log"
	"github.com/oceanlab/argonaut/internal/query"
	"github.com/oceanlab/argonaut/internal/schema"
	"github.com/oceanlab/argonaut/internal/testutil"
)

func ptr(v float64) *float64 { return &v }

// TestStoreRoundTrip exercises the real schema end to end: profile insert,
// duplicate rejection, measurement copy, then the executor and introspector
// over the ingested data.
func TestStoreRoundTrip(t *testing.T) {
	container, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := ingest.NewPGStore(container.Pool)

	profile := ingest.Profile{
		FloatWMOID: 5904297,
		Latitude:   -33.9,
		Longitude:  18.4,
		Timestamp:  time.Date(2025, 1, 2, 10, 30, 0, 0, time.UTC),
	}

	profileID, err := store.InsertProfile(ctx, profile)
	if err != nil {
		t.Fatalf("InsertProfile() = %v", err)
	}
	if profileID == 0 {
		t.Fatal("InsertProfile() returned zero id")
	}

	if _, err := store.InsertProfile(ctx, profile); !errors.Is(err, ingest.ErrDuplicateProfile) {
		t.Fatalf("second InsertProfile() = %v, want ErrDuplicateProfile", err)
	}

	err = store.InsertMeasurements(ctx, profileID, []ingest.Measurement{
		{PressureDbar: ptr(5.1), TemperatureCelsius: ptr(18.2), SalinityPSU: ptr(35.1)},
		{PressureDbar: ptr(10.3), TemperatureCelsius: ptr(17.8), SalinityPSU: ptr(35.0), ChlaMgM3: ptr(0.2)},
	})
	if err != nil {
		t.Fatalf("InsertMeasurements() = %v", err)
	}

	exec := query.NewExecutor(container.Pool, 500, log.NewNop())
	res, err := exec.Run(ctx,
		"SELECT m.profile_id, ROUND(AVG(m.temperature_celsius)::numeric, 2) AS avg_temperature_celsius "+
			"FROM measurements m GROUP BY m.profile_id ORDER BY avg_temperature_celsius DESC LIMIT 5;")
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("Run() returned %d rows, want 1", len(res.Rows))
	}
	if avg, ok := res.Rows[0]["avg_temperature_celsius"].(float64); !ok || avg != 18.0 {
		t.Errorf("avg_temperature_celsius = %v, want 18.0", res.Rows[0]["avg_temperature_celsius"])
	}
	if ids := res.ProfileIDs(); len(ids) != 1 || ids[0] != profileID {
		t.Errorf("ProfileIDs() = %v, want [%d]", ids, profileID)
	}

	intro := schema.New(container.Pool, log.NewNop())
	rendered, err := intro.Render(ctx)
	if err != nil {
		t.Fatalf("Render() = %v", err)
	}
	for _, want := range []string{"TABLE profiles", "TABLE measurements", "temperature_celsius"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered schema missing %q", want)
		}
	}
}
