// Package simdrive synthesizes plausible drivetrain behaviour when the
// diagnostic bus has no fresh data. A five-mode state machine with randomized
// dwell times produces RPM, gear and derived acceleration/angular-rate values
// so the estimator always has an input to predict from; the filter cannot
// distinguish fallback from live input, by contract.
package simdrive

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/driveline-data/speedfusion/internal/mat3"
)

// Mode is one discrete driving behaviour.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAccelerating
	ModeCruising
	ModeBraking
	ModeCornering
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAccelerating:
		return "accelerating"
	case ModeCruising:
		return "cruising"
	case ModeBraking:
		return "braking"
	case ModeCornering:
		return "cornering"
	default:
		return "unknown"
	}
}

// Drivetrain limits and shift points.
const (
	idleRPM      = 800.0
	maxRPM       = 6500.0
	upshiftRPM   = 3000.0 // upshift above this while accelerating
	downshiftRPM = 1200.0 // downshift below this while braking
	maxGear      = 6
	shiftDropRPM = 1200.0 // RPM drop on upshift, gain on downshift
)

// transition is one weighted successor choice.
type transition struct {
	to     Mode
	weight float64
}

// successors is the fixed weighted transition set per mode.
var successors = map[Mode][]transition{
	ModeIdle: {
		{ModeAccelerating, 0.7},
		{ModeIdle, 0.3},
	},
	ModeAccelerating: {
		{ModeCruising, 0.6},
		{ModeBraking, 0.2},
		{ModeCornering, 0.2},
	},
	ModeCruising: {
		{ModeCornering, 0.3},
		{ModeBraking, 0.3},
		{ModeAccelerating, 0.2},
		{ModeCruising, 0.2},
	},
	ModeBraking: {
		{ModeIdle, 0.4},
		{ModeAccelerating, 0.3},
		{ModeCruising, 0.3},
	},
	ModeCornering: {
		{ModeCruising, 0.6},
		{ModeBraking, 0.2},
		{ModeAccelerating, 0.2},
	},
}

// Input is one tick of synthetic drivetrain state, shaped exactly like the
// live inputs the estimator predicts from.
type Input struct {
	RPM   float64
	Gear  int
	Accel mat3.Vec3 // body frame, m/s^2
	Gyro  mat3.Vec3 // body frame, rad/s
}

// Generator is the fallback state machine. Initialized once, stepped every
// tick by the orchestrator, never reset except at process start. Not safe
// for concurrent use.
type Generator struct {
	rng *rand.Rand

	mode       Mode
	deadline   time.Time // when the current mode ends
	rpm        float64
	gear       int
	cornerSign float64 // -1 or +1, fixed for the duration of a corner

	dwell     distuv.Uniform // mode dwell time in seconds
	rpmRise   distuv.Uniform // RPM gain per tick while accelerating
	rpmFall   distuv.Uniform // RPM loss per tick while braking
	rpmWander distuv.Uniform // RPM jitter while cruising
	hardAccel distuv.Uniform // longitudinal accel while accelerating
	brake     distuv.Uniform // longitudinal accel while braking (negative)
	coast     distuv.Uniform // longitudinal accel while cruising/cornering
	lateralG  distuv.Uniform // lateral accel magnitude while cornering
	yawRate   distuv.Uniform // yaw rate magnitude while cornering
}

// New creates a generator starting at idle. The seed fixes the random
// sequence for reproducible runs.
func New(seed uint64) *Generator {
	src := rand.NewPCG(seed, seed)
	return &Generator{
		rng:        rand.New(src),
		mode:       ModeIdle,
		rpm:        idleRPM,
		gear:       1,
		cornerSign: 1,
		dwell:      distuv.Uniform{Min: 1.0, Max: 4.0, Src: src},
		rpmRise:    distuv.Uniform{Min: 80, Max: 160, Src: src},
		rpmFall:    distuv.Uniform{Min: 100, Max: 200, Src: src},
		rpmWander:  distuv.Uniform{Min: -30, Max: 30, Src: src},
		hardAccel:  distuv.Uniform{Min: 1.5, Max: 3.5, Src: src},
		brake:      distuv.Uniform{Min: -4.0, Max: -2.0, Src: src},
		coast:      distuv.Uniform{Min: -0.3, Max: 0.3, Src: src},
		lateralG:   distuv.Uniform{Min: 2.0, Max: 4.0, Src: src},
		yawRate:    distuv.Uniform{Min: 0.2, Max: 0.5, Src: src},
	}
}

// Mode returns the current discrete mode.
func (g *Generator) Mode() Mode {
	return g.mode
}

// Step advances the state machine to now and returns this tick's synthetic
// drivetrain input.
func (g *Generator) Step(now time.Time) Input {
	if g.deadline.IsZero() {
		// First tick: dwell in the initial mode before any transition.
		g.deadline = now.Add(time.Duration(g.dwell.Rand() * float64(time.Second)))
	} else if now.After(g.deadline) {
		g.transition(now)
	}

	in := Input{Gear: g.gear}

	switch g.mode {
	case ModeIdle:
		// RPM decays toward idle, no motion input.
		g.rpm += (idleRPM - g.rpm) * 0.2

	case ModeAccelerating:
		g.rpm += g.rpmRise.Rand()
		if g.rpm > upshiftRPM && g.gear < maxGear {
			g.gear++
			g.rpm -= shiftDropRPM
		}
		in.Accel[0] = g.hardAccel.Rand()

	case ModeCruising:
		g.rpm += g.rpmWander.Rand()
		in.Accel[0] = g.coast.Rand()

	case ModeBraking:
		g.rpm -= g.rpmFall.Rand()
		if g.rpm < downshiftRPM && g.gear > 1 {
			g.gear--
			g.rpm += shiftDropRPM
		}
		in.Accel[0] = g.brake.Rand()

	case ModeCornering:
		g.rpm += g.rpmWander.Rand()
		in.Accel[0] = g.coast.Rand()
		in.Accel[1] = g.cornerSign * g.lateralG.Rand()
		in.Gyro[2] = g.cornerSign * g.yawRate.Rand()
	}

	if g.rpm < idleRPM {
		g.rpm = idleRPM
	} else if g.rpm > maxRPM {
		g.rpm = maxRPM
	}
	in.RPM = g.rpm
	return in
}

// transition picks the next mode from the weighted successor set and draws a
// new dwell deadline.
func (g *Generator) transition(now time.Time) {
	choices := successors[g.mode]
	total := 0.0
	for _, c := range choices {
		total += c.weight
	}
	r := g.rng.Float64() * total
	next := choices[len(choices)-1].to
	for _, c := range choices {
		if r < c.weight {
			next = c.to
			break
		}
		r -= c.weight
	}

	g.mode = next
	g.deadline = now.Add(time.Duration(g.dwell.Rand() * float64(time.Second)))
	if next == ModeCornering {
		if g.rng.Float64() < 0.5 {
			g.cornerSign = -1
		} else {
			g.cornerSign = 1
		}
	}
}
