package obd

import (
	"sync"
	"time"
)

// Sample is one decoded signal value with its last-update timestamp. A zero
// Sample has never been updated.
type Sample struct {
	Value     float64
	UpdatedAt time.Time
}

// FreshWithin reports whether the sample was updated within the window
// ending at now. A never-updated sample is never fresh.
func (s Sample) FreshWithin(now time.Time, window time.Duration) bool {
	if s.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(s.UpdatedAt) <= window
}

// Snapshot is a fixed struct of the latest decoded signal values. Using named
// fields instead of a string-keyed map removes typo-prone lookups and makes
// consumers compile-time complete.
type Snapshot struct {
	EngineRPM           Sample // rpm
	VehicleSpeedKmh     Sample // km/h
	ManifoldPressureKPa Sample // kPa
	ThrottlePct         Sample // %
	CoolantTempC        Sample // degC
	IntakeTempC         Sample // degC
	TimingAdvanceDeg    Sample // deg before TDC
	MassAirFlowGps      Sample // g/s
	Lambda              Sample // equivalence ratio
	EngineLoadPct       Sample // %
	SupplyVoltage       Sample // V
	FuelLevelPct        Sample // %
	BarometricKPa       Sample // kPa
	AmbientTempC        Sample // degC
	FuelRailPressureKPa Sample // kPa
}

// field returns a pointer to the snapshot field for a signal.
func (s *Snapshot) field(sig Signal) *Sample {
	switch sig {
	case SignalEngineRPM:
		return &s.EngineRPM
	case SignalVehicleSpeed:
		return &s.VehicleSpeedKmh
	case SignalManifoldPressure:
		return &s.ManifoldPressureKPa
	case SignalThrottle:
		return &s.ThrottlePct
	case SignalCoolantTemp:
		return &s.CoolantTempC
	case SignalIntakeTemp:
		return &s.IntakeTempC
	case SignalTimingAdvance:
		return &s.TimingAdvanceDeg
	case SignalMassAirFlow:
		return &s.MassAirFlowGps
	case SignalLambda:
		return &s.Lambda
	case SignalEngineLoad:
		return &s.EngineLoadPct
	case SignalSupplyVoltage:
		return &s.SupplyVoltage
	case SignalFuelLevel:
		return &s.FuelLevelPct
	case SignalBarometricPressure:
		return &s.BarometricKPa
	case SignalAmbientTemp:
		return &s.AmbientTempC
	case SignalFuelRailPressure:
		return &s.FuelRailPressureKPa
	default:
		return nil
	}
}

// Cache holds the latest decoded values. The poller is its only writer; the
// tick orchestrator reads through Snapshot, which returns a copy so readers
// never observe a partially updated entry.
type Cache struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Set overwrites the cache entry for a signal. Callers must have already
// verified the value is finite; a malformed decode never reaches the cache.
func (c *Cache) Set(sig Signal, value float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f := c.snap.field(sig); f != nil {
		*f = Sample{Value: value, UpdatedAt: now}
	}
}

// Snapshot returns a copy of the current cache contents.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}
