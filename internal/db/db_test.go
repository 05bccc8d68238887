package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline-data/speedfusion/internal/fusion"
	"github.com/driveline-data/speedfusion/internal/mat3"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndReadBack(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := db.RecordEstimate(fusion.Estimate{
			RunID:       "run-1",
			Tick:        uint64(i + 1),
			Time:        base.Add(time.Duration(i) * 50 * time.Millisecond),
			SpeedMps:    float64(i),
			Velocity:    mat3.Vec3{float64(i), 0, 0},
			Uncertainty: 1.5,
			Source:      fusion.SourceBus,
		})
		require.NoError(t, err)
	}

	got, err := db.RecentEstimates(2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, uint64(3), got[0].Tick)
	assert.Equal(t, 2.0, got[0].SpeedMps)
	assert.Equal(t, fusion.SourceBus, got[0].Source)
	assert.Equal(t, "run-1", got[0].RunID)
}

func TestRecordBusSample(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.RecordBusSample("vehicle_speed", 50.0, time.Now()))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM bus_samples").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRecentEstimatesEmpty(t *testing.T) {
	db := newTestDB(t)

	got, err := db.RecentEstimates(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
