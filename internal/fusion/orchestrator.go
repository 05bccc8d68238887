// Package fusion drives the velocity estimator once per fixed tick: input
// freshness check, fallback-or-real selection, prediction, then bus, vision
// and satellite corrections in a strict deterministic order. The orchestrator
// is the sole writer of the filter and the sole reader of the diagnostic
// cache.
package fusion

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driveline-data/speedfusion/internal/estimator"
	"github.com/driveline-data/speedfusion/internal/gps"
	"github.com/driveline-data/speedfusion/internal/mat3"
	"github.com/driveline-data/speedfusion/internal/monitoring"
	"github.com/driveline-data/speedfusion/internal/obd"
	"github.com/driveline-data/speedfusion/internal/simdrive"
	"github.com/driveline-data/speedfusion/internal/timeutil"
	"github.com/driveline-data/speedfusion/internal/units"
)

// InputSource labels where the prediction input for a tick came from.
type InputSource string

const (
	SourceBus      InputSource = "bus"
	SourceFallback InputSource = "fallback"
)

// Config holds the orchestrator timing parameters.
type Config struct {
	TickPeriod       time.Duration // fusion cadence (50ms = 20 Hz)
	StalenessWindow  time.Duration // bus cache freshness window
	FixExpiry        time.Duration // satellite fix expiry window
	VisionEveryTicks int           // fuse vision every Nth tick
}

// DefaultConfig returns the production cadence.
func DefaultConfig() Config {
	return Config{
		TickPeriod:       50 * time.Millisecond,
		StalenessWindow:  500 * time.Millisecond,
		FixExpiry:        2 * time.Second,
		VisionEveryTicks: 4,
	}
}

// Estimate is the published output of one fusion tick.
type Estimate struct {
	RunID          string      `json:"run_id"`
	Tick           uint64      `json:"tick"`
	Time           time.Time   `json:"time"`
	SpeedMps       float64     `json:"speed_mps"`
	Velocity       mat3.Vec3   `json:"velocity"`
	Uncertainty    float64     `json:"uncertainty"`
	Source         InputSource `json:"source"`
	VisionTracking bool        `json:"vision_tracking"`
	FixFused       bool        `json:"fix_fused"`
}

// Recorder persists estimates. Implementations must tolerate being called at
// tick rate.
type Recorder interface {
	RecordEstimate(e Estimate) error
}

// Orchestrator owns the filter and drives one fusion cycle per tick. It is
// constructed with explicit instances of every collaborator; there is no
// shared global state.
type Orchestrator struct {
	cfg      Config
	clock    timeutil.Clock
	filter   *estimator.VelocityEKF
	cache    *obd.Cache
	fallback *simdrive.Generator
	fixes    gps.LatestFix
	recorder Recorder // may be nil

	runID string
	tick  uint64

	// Previous fresh bus speed, for deriving longitudinal acceleration.
	prevBusSpeed   float64
	prevBusSpeedAt time.Time

	mu     sync.RWMutex
	latest Estimate
}

// New creates an orchestrator. recorder may be nil to disable persistence.
func New(cfg Config, clock timeutil.Clock, filter *estimator.VelocityEKF, cache *obd.Cache, fallback *simdrive.Generator, recorder Recorder) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		clock:    clock,
		filter:   filter,
		cache:    cache,
		fallback: fallback,
		recorder: recorder,
		runID:    uuid.NewString(),
	}
}

// RunID returns the identifier stamped on every estimate of this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// OnFix stores a newly delivered position fix. Safe to call from the
// producer's goroutine.
func (o *Orchestrator) OnFix(fix gps.Fix) {
	o.fixes.Set(fix, o.clock.Now())
}

// Latest returns the most recently published estimate.
func (o *Orchestrator) Latest() Estimate {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.latest
}

// Run ticks until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := o.clock.NewTicker(o.cfg.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			o.Tick()
		}
	}
}

// busFresh is the single freshness predicate: the bus is live when the
// ground-speed sample, the primary fusion input, is within the staleness
// window.
func (o *Orchestrator) busFresh(snap obd.Snapshot, now time.Time) bool {
	return snap.VehicleSpeedKmh.FreshWithin(now, o.cfg.StalenessWindow)
}

// Tick runs one fusion cycle.
func (o *Orchestrator) Tick() {
	o.tick++
	now := o.clock.Now()
	dt := o.cfg.TickPeriod.Seconds()
	snap := o.cache.Snapshot()

	// Input selection: live bus data or the physics fallback. The filter
	// cannot tell them apart.
	var accel, gyro mat3.Vec3
	source := SourceFallback
	fresh := o.busFresh(snap, now)
	if fresh {
		source = SourceBus
		accel[0] = o.busAcceleration(snap, now)
	} else {
		in := o.fallback.Step(now)
		accel = in.Accel
		gyro = in.Gyro
	}

	o.filter.Predict(accel, gyro, dt)

	if fresh {
		speed := units.KmhToMps(snap.VehicleSpeedKmh.Value)
		if err := o.filter.FuseBusSpeed(speed); err != nil {
			monitoring.Logf("fusion: bus fusion rejected: %v", err)
		}
	}

	visionTracking := false
	if o.cfg.VisionEveryTicks > 0 && o.tick%uint64(o.cfg.VisionEveryTicks) == 0 {
		res, err := o.filter.FuseVisionSpeed(o.filter.EstimatedSpeed(), dt)
		if err != nil {
			monitoring.Logf("fusion: vision fusion rejected: %v", err)
		}
		visionTracking = res.Tracking
	}

	fixFused := false
	if fix, ok := o.fixes.Get(now, o.cfg.FixExpiry); ok && fix.HasSpeed {
		if err := o.filter.FuseSatelliteSpeed(fix.SpeedMps, fix.Accuracy); err != nil {
			monitoring.Logf("fusion: satellite fusion rejected: %v", err)
		} else {
			fixFused = true
		}
	}

	o.publish(Estimate{
		RunID:          o.runID,
		Tick:           o.tick,
		Time:           now,
		SpeedMps:       o.filter.EstimatedSpeed(),
		Velocity:       o.filter.State(),
		Uncertainty:    o.filter.Uncertainty(),
		Source:         source,
		VisionTracking: visionTracking,
		FixFused:       fixFused,
	})
}

// busAcceleration derives longitudinal acceleration from successive bus speed
// samples. The first fresh sample after a gap yields zero.
func (o *Orchestrator) busAcceleration(snap obd.Snapshot, now time.Time) float64 {
	speed := units.KmhToMps(snap.VehicleSpeedKmh.Value)
	defer func() {
		o.prevBusSpeed = speed
		o.prevBusSpeedAt = snap.VehicleSpeedKmh.UpdatedAt
	}()

	if o.prevBusSpeedAt.IsZero() || !o.prevBusSpeedAt.Before(snap.VehicleSpeedKmh.UpdatedAt) {
		return 0
	}
	elapsed := snap.VehicleSpeedKmh.UpdatedAt.Sub(o.prevBusSpeedAt).Seconds()
	if elapsed <= 0 || elapsed > o.cfg.StalenessWindow.Seconds()*2 {
		return 0
	}
	return (speed - o.prevBusSpeed) / elapsed
}

func (o *Orchestrator) publish(e Estimate) {
	o.mu.Lock()
	o.latest = e
	o.mu.Unlock()

	if o.recorder != nil {
		if err := o.recorder.RecordEstimate(e); err != nil {
			monitoring.Logf("fusion: failed to record estimate: %v", err)
		}
	}
}
