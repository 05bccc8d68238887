// Package vision models a visual-odometry speed source. The real
// feature-tracking pipeline lives elsewhere; this package implements its
// output contract: a speed estimate with a confidence score and a hard
// tracking-loss gate, degrading under low light and high motion blur.
package vision

import (
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// TrackingThreshold is the quality score below which tracking is lost and
	// the caller must skip fusion.
	TrackingThreshold = 0.3
	// HighSpeedThresholdMps is the speed above which motion blur starts to
	// degrade feature quality.
	HighSpeedThresholdMps = 25.0
	// BlurPenalty multiplies the quality score when above the high-speed
	// threshold.
	BlurPenalty = 0.6
	// DefaultLighting is the assumed scene lighting quality in [0, 1].
	DefaultLighting = 0.95
)

// Result is one speed estimate from the producer. When Tracking is false the
// estimate carries no information and must not be fused.
type Result struct {
	Speed      float64 // m/s, non-negative
	Confidence float64 // [0, 1]
	Tracking   bool
}

// Estimator produces speed estimates with confidence derived from lighting
// and motion-blur heuristics plus randomized feature quality.
type Estimator struct {
	lighting   float64
	qualityJit distuv.Uniform // perturbation on the quality score
	speedNoise distuv.Uniform // additive noise on the speed estimate
}

// New returns an estimator with the given lighting quality. Lighting outside
// [0, 1] is clamped.
func New(lighting float64) *Estimator {
	if lighting < 0 {
		lighting = 0
	} else if lighting > 1 {
		lighting = 1
	}
	return &Estimator{
		lighting:   lighting,
		qualityJit: distuv.Uniform{Min: -0.15, Max: 0.15},
		speedNoise: distuv.Uniform{Min: -0.4, Max: 0.4},
	}
}

// Estimate returns a speed estimate for the given nominal speed over dt
// seconds. Quality starts at the configured lighting, is penalized above the
// high-speed threshold and perturbed by bounded uniform noise; a quality below
// TrackingThreshold reports tracking lost.
func (e *Estimator) Estimate(nominalSpeed, dt float64) Result {
	quality := e.lighting
	if nominalSpeed > HighSpeedThresholdMps {
		quality *= BlurPenalty
	}
	quality += e.qualityJit.Rand()

	if quality < TrackingThreshold {
		return Result{}
	}
	if quality > 1 {
		quality = 1
	}

	speed := nominalSpeed + e.speedNoise.Rand()
	if speed < 0 {
		speed = 0
	}
	return Result{Speed: speed, Confidence: quality, Tracking: true}
}

// SetLighting updates the scene lighting quality, clamped to [0, 1].
func (e *Estimator) SetLighting(lighting float64) {
	if lighting < 0 {
		lighting = 0
	} else if lighting > 1 {
		lighting = 1
	}
	e.lighting = lighting
}
