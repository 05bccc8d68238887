// Package estimator implements a 3-state extended Kalman filter over the
// vehicle's body-frame velocity. The state is fed by a kinematic prediction
// step (accelerometer + gyro, or the physics fallback when the diagnostic bus
// is stale) and corrected by three scalar measurement sources: wheel speed
// from the diagnostic bus, satellite ground speed, and visual odometry.
package estimator

import (
	"errors"
	"math"

	"github.com/driveline-data/speedfusion/internal/mat3"
	"github.com/driveline-data/speedfusion/internal/vision"
)

// Numerical guards for the scalar update.
const (
	// MinSpeedEpsilon substitutes for |x| in the satellite Jacobian when the
	// velocity magnitude is near zero.
	MinSpeedEpsilon = 1e-3
	// MinInnovationCovariance is the smallest S accepted before computing 1/S.
	MinInnovationCovariance = 1e-9
	// InnovationGateSigma clamps innovations beyond this many standard
	// deviations of S, bounding the damage a single corrupt measurement can do.
	InnovationGateSigma = 3.0
)

var (
	// ErrBadVariance is returned when a fusion is attempted with a
	// non-positive measurement variance.
	ErrBadVariance = errors.New("estimator: measurement variance must be positive")
	// ErrDegenerateInnovation is returned when the innovation covariance is
	// too close to zero to invert.
	ErrDegenerateInnovation = errors.New("estimator: innovation covariance is not positive")
)

// Config holds the filter's noise parameters.
type Config struct {
	ProcessNoise     mat3.Vec3 // diagonal of Q, (m/s)^2 per step
	InitialVariance  float64   // initial diagonal of P
	BusSpeedVariance float64   // R for wheel-speed fusion (wheel slip)
	SatVarianceFloor float64   // lower bound on R for satellite fusion
	SatVarianceScale float64   // R = max(floor, accuracy*scale)
	VisionNoiseScale float64   // R = scale / max(minConf, confidence)
	VisionMinConf    float64   // confidence floor in the vision R formula
}

// DefaultConfig returns the filter tuning used in production.
func DefaultConfig() Config {
	return Config{
		ProcessNoise:     mat3.Vec3{0.1, 0.1, 0.05},
		InitialVariance:  1.0,
		BusSpeedVariance: 2.0,
		SatVarianceFloor: 0.5,
		SatVarianceScale: 0.5,
		VisionNoiseScale: 0.5,
		VisionMinConf:    0.1,
	}
}

// VelocityEKF tracks the body-frame velocity vector [longitudinal, lateral,
// vertical] in m/s together with its 3x3 error covariance. It is not safe for
// concurrent use; the tick orchestrator is its sole writer.
type VelocityEKF struct {
	cfg Config

	x mat3.Vec3 // velocity state (m/s)
	p mat3.Mat3 // error covariance (3x3, row-major)
	q mat3.Mat3 // process noise, fixed for the filter's lifetime

	vision *vision.Estimator
}

// New creates a filter at rest with the configured initial covariance.
func New(cfg Config, vis *vision.Estimator) *VelocityEKF {
	return &VelocityEKF{
		cfg:    cfg,
		p:      mat3.Diag(mat3.Vec3{cfg.InitialVariance, cfg.InitialVariance, cfg.InitialVariance}),
		q:      mat3.Diag(cfg.ProcessNoise),
		vision: vis,
	}
}

// Predict advances the state by dt seconds using the body-frame kinematic
// model dv/dt = a - w x v, and propagates the covariance through the
// linearized transition F = I + dt*Skew(-w):
//
//	x <- x + dt*(a - w x x)
//	P <- F P F^T + Q
func (f *VelocityEKF) Predict(accel, gyro mat3.Vec3, dt float64) {
	if dt <= 0 {
		return
	}

	rate := accel.Sub(gyro.Cross(f.x))
	f.x = f.x.Add(rate.Scale(dt))

	ft := mat3.Identity().Add(mat3.Skew(gyro.Scale(-1)).Scale(dt))
	f.p = ft.Mul(f.p).Mul(ft.Transpose()).Add(f.q)
}

// update applies the generic scalar correction shared by all fusions.
// z is the measurement, hx the predicted measurement, h the Jacobian row and
// r the measurement variance.
func (f *VelocityEKF) update(z, hx float64, h mat3.Vec3, r float64) error {
	if r <= 0 {
		return ErrBadVariance
	}

	// Innovation and its covariance S = H P H^T + R (scalar).
	y := z - hx
	if y == 0 {
		// The measurement agrees exactly with the prediction; nothing to apply.
		return nil
	}
	ph := f.p.MulVec(h)
	s := h.Dot(ph) + r
	if s < MinInnovationCovariance {
		return ErrDegenerateInnovation
	}

	// Gate the innovation at 3 sigma before applying.
	gate := InnovationGateSigma * math.Sqrt(s)
	if y > gate {
		y = gate
	} else if y < -gate {
		y = -gate
	}

	// K = P H^T / S
	k := ph.Scale(1 / s)

	f.x = f.x.Add(k.Scale(y))
	// P <- (I - K H) P. Simplified form, not Joseph; adequate at this state
	// size and noise scale.
	f.p = mat3.Identity().Add(mat3.Outer(k, h).Scale(-1)).Mul(f.p)
	return nil
}

// FuseBusSpeed corrects the filter with a wheel-speed reading from the
// diagnostic bus. The bus measures only the longitudinal component.
func (f *VelocityEKF) FuseBusSpeed(speed float64) error {
	return f.update(speed, f.x[0], mat3.Vec3{1, 0, 0}, f.cfg.BusSpeedVariance)
}

// FuseSatelliteSpeed corrects the filter with a satellite ground-speed
// reading. The measurement is the magnitude of the full velocity vector, so
// the Jacobian is the unit vector along the current estimate. Trust scales
// with the reported positioning accuracy in metres.
func (f *VelocityEKF) FuseSatelliteSpeed(speed, accuracy float64) error {
	mag := f.x.Norm()
	if mag < MinSpeedEpsilon {
		mag = MinSpeedEpsilon
	}
	h := f.x.Scale(1 / mag)
	r := accuracy * f.cfg.SatVarianceScale
	if r < f.cfg.SatVarianceFloor {
		r = f.cfg.SatVarianceFloor
	}
	return f.update(speed, mag, h, r)
}

// FuseVisionSpeed asks the visual odometry producer for a speed estimate and,
// if tracking held, corrects the longitudinal component with a variance scaled
// inversely to the reported confidence. A tracking loss skips the correction
// entirely and is not an error.
func (f *VelocityEKF) FuseVisionSpeed(nominalSpeed, dt float64) (vision.Result, error) {
	res := f.vision.Estimate(nominalSpeed, dt)
	if !res.Tracking {
		return res, nil
	}
	conf := res.Confidence
	if conf < f.cfg.VisionMinConf {
		conf = f.cfg.VisionMinConf
	}
	r := f.cfg.VisionNoiseScale / conf
	if err := f.update(res.Speed, f.x[0], mat3.Vec3{1, 0, 0}, r); err != nil {
		return res, err
	}
	return res, nil
}

// EstimatedSpeed returns the Euclidean norm of the velocity state in m/s.
func (f *VelocityEKF) EstimatedSpeed() float64 {
	return f.x.Norm()
}

// Uncertainty returns the trace of the error covariance, a scalar proxy for
// the overall confidence of the estimate.
func (f *VelocityEKF) Uncertainty() float64 {
	return f.p.Trace()
}

// State returns a copy of the velocity state vector.
func (f *VelocityEKF) State() mat3.Vec3 {
	return f.x
}

// Covariance returns a copy of the error covariance matrix.
func (f *VelocityEKF) Covariance() mat3.Mat3 {
	return f.p
}
