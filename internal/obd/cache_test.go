package obd

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSampleFreshness(t *testing.T) {
	now := time.Unix(1000, 0)

	var never Sample
	assert.False(t, never.FreshWithin(now, time.Hour), "zero sample is never fresh")

	fresh := Sample{Value: 1, UpdatedAt: now.Add(-100 * time.Millisecond)}
	assert.True(t, fresh.FreshWithin(now, 500*time.Millisecond))
	assert.False(t, fresh.FreshWithin(now, 50*time.Millisecond))
}

func TestCacheSetAndSnapshot(t *testing.T) {
	c := NewCache()
	now := time.Unix(2000, 0)

	c.Set(SignalEngineRPM, 1726, now)
	c.Set(SignalVehicleSpeed, 50, now)

	snap := c.Snapshot()
	assert.Equal(t, 1726.0, snap.EngineRPM.Value)
	assert.Equal(t, now, snap.EngineRPM.UpdatedAt)
	assert.Equal(t, 50.0, snap.VehicleSpeedKmh.Value)
	assert.True(t, snap.CoolantTempC.UpdatedAt.IsZero(), "unwritten fields stay zero")
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewCache()
	now := time.Unix(3000, 0)
	c.Set(SignalThrottle, 25, now)

	before := c.Snapshot()
	c.Set(SignalThrottle, 75, now.Add(time.Second))
	after := c.Snapshot()

	assert.Equal(t, 25.0, before.ThrottlePct.Value, "earlier snapshot must not change")
	assert.Equal(t, 75.0, after.ThrottlePct.Value)
	if diff := cmp.Diff(before, after); diff == "" {
		t.Error("snapshots before and after a write must differ")
	}
}

func TestEverySignalHasAField(t *testing.T) {
	var snap Snapshot
	for sig := Signal(0); sig < numSignals; sig++ {
		assert.NotNil(t, snap.field(sig), "signal %s has no snapshot field", sig)
	}
	assert.Nil(t, snap.field(numSignals))
}

func TestEverySignalHasACommand(t *testing.T) {
	for sig := Signal(0); sig < numSignals; sig++ {
		_, ok := CommandBySignal(sig)
		assert.True(t, ok, "signal %s has no command", sig)
	}
}
