package runstore

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Re-running is a no-op
	require.NoError(t, s.MigrateUp())
}

func TestRecordAndGet(t *testing.T) {
	s := openTestStore(t)

	run := &Run{
		Mode:          "solve",
		PatchSize:     200,
		Truth:         "300 300 500 0.5 0.6 0.7 0.6 0.8 0.5 0.4 0.9 1",
		Estimate:      "300 301 497 0.5 0.6 0.7 0.6 0.8 0.5 0.4 0.9 1",
		HasLocation:   true,
		HasHeight:     true,
		HasAlbedo:     true,
		LocationError: sql.NullFloat64{Float64: 0.0012, Valid: true},
		HeightError:   sql.NullFloat64{Float64: 0.0035, Valid: true},
		Duration:      1500 * time.Millisecond,
	}
	require.NoError(t, s.Record(run))
	_, err := uuid.Parse(run.ID)
	require.NoError(t, err, "generated run ID should be a UUID")
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Mode, got.Mode)
	assert.Equal(t, run.Truth, got.Truth)
	assert.Equal(t, run.Estimate, got.Estimate)
	assert.True(t, got.HasAlbedo)
	assert.Equal(t, run.LocationError, got.LocationError)
	assert.False(t, got.MaxAlbedoError.Valid)
	assert.False(t, got.Score.Valid)
	assert.Equal(t, run.Duration, got.Duration)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(&Run{
			Mode:      "render",
			PatchSize: 50,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Score:     sql.NullFloat64{Float64: float64(i), Valid: true},
		}))
	}

	runs, err := s.List(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, 4.0, runs[0].Score.Float64)
	assert.Equal(t, 2.0, runs[2].Score.Float64)
	assert.True(t, runs[0].CreatedAt.Equal(base.Add(4*time.Minute)))
}

func TestRecordRejectsDuplicateID(t *testing.T) {
	s := openTestStore(t)
	run := &Run{ID: uuid.NewString(), Mode: "score", PatchSize: 10}
	require.NoError(t, s.Record(run))
	assert.Error(t, s.Record(run))
}
