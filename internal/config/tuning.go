// Package config holds the service tuning parameters. The schema is a JSON
// file of optional fields; anything omitted falls back to the built-in
// default through the Get* accessors, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the root configuration for the fusion service.
type TuningConfig struct {
	// Tick loop
	TickPeriod       *string `json:"tick_period,omitempty"`        // duration string like "50ms"
	StalenessWindow  *string `json:"staleness_window,omitempty"`   // bus cache freshness window
	FixExpiry        *string `json:"fix_expiry,omitempty"`         // satellite fix expiry window
	VisionEveryTicks *int    `json:"vision_every_ticks,omitempty"` // vision fusion rate limit

	// Filter noise
	ProcessNoiseLong *float64 `json:"process_noise_long,omitempty"`
	ProcessNoiseLat  *float64 `json:"process_noise_lat,omitempty"`
	ProcessNoiseVert *float64 `json:"process_noise_vert,omitempty"`
	BusSpeedVariance *float64 `json:"bus_speed_variance,omitempty"`
	SatVarianceFloor *float64 `json:"sat_variance_floor,omitempty"`
	SatVarianceScale *float64 `json:"sat_variance_scale,omitempty"`
	VisionNoiseScale *float64 `json:"vision_noise_scale,omitempty"`

	// Vision producer
	Lighting *float64 `json:"lighting,omitempty"` // scene lighting quality [0,1]

	// Diagnostic link
	SerialPort     *string `json:"serial_port,omitempty"`
	BaudRate       *int    `json:"baud_rate,omitempty"`
	RequestTimeout *string `json:"request_timeout,omitempty"`
	PollBackoff    *string `json:"poll_backoff,omitempty"` // delay after a transport failure
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted from
// the file retain their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	for name, d := range map[string]*string{
		"tick_period":      c.TickPeriod,
		"staleness_window": c.StalenessWindow,
		"fix_expiry":       c.FixExpiry,
		"request_timeout":  c.RequestTimeout,
		"poll_backoff":     c.PollBackoff,
	} {
		if d != nil && *d != "" {
			if _, err := time.ParseDuration(*d); err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, *d, err)
			}
		}
	}

	if c.Lighting != nil {
		if *c.Lighting < 0 || *c.Lighting > 1 {
			return fmt.Errorf("lighting must be between 0 and 1, got %f", *c.Lighting)
		}
	}

	for name, v := range map[string]*float64{
		"process_noise_long": c.ProcessNoiseLong,
		"process_noise_lat":  c.ProcessNoiseLat,
		"process_noise_vert": c.ProcessNoiseVert,
		"bus_speed_variance": c.BusSpeedVariance,
		"sat_variance_floor": c.SatVarianceFloor,
		"sat_variance_scale": c.SatVarianceScale,
		"vision_noise_scale": c.VisionNoiseScale,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.VisionEveryTicks != nil && *c.VisionEveryTicks < 1 {
		return fmt.Errorf("vision_every_ticks must be at least 1, got %d", *c.VisionEveryTicks)
	}
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	return nil
}

func (c *TuningConfig) duration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetTickPeriod returns the fusion tick period (default 50ms / 20 Hz).
func (c *TuningConfig) GetTickPeriod() time.Duration {
	return c.duration(c.TickPeriod, 50*time.Millisecond)
}

// GetStalenessWindow returns the bus cache freshness window.
func (c *TuningConfig) GetStalenessWindow() time.Duration {
	return c.duration(c.StalenessWindow, 500*time.Millisecond)
}

// GetFixExpiry returns the satellite fix expiry window.
func (c *TuningConfig) GetFixExpiry() time.Duration {
	return c.duration(c.FixExpiry, 2*time.Second)
}

// GetVisionEveryTicks returns the vision fusion rate limit in ticks.
func (c *TuningConfig) GetVisionEveryTicks() int {
	if c.VisionEveryTicks == nil {
		return 4
	}
	return *c.VisionEveryTicks
}

// GetProcessNoiseLong returns the longitudinal process noise.
func (c *TuningConfig) GetProcessNoiseLong() float64 {
	if c.ProcessNoiseLong == nil {
		return 0.1
	}
	return *c.ProcessNoiseLong
}

// GetProcessNoiseLat returns the lateral process noise.
func (c *TuningConfig) GetProcessNoiseLat() float64 {
	if c.ProcessNoiseLat == nil {
		return 0.1
	}
	return *c.ProcessNoiseLat
}

// GetProcessNoiseVert returns the vertical process noise.
func (c *TuningConfig) GetProcessNoiseVert() float64 {
	if c.ProcessNoiseVert == nil {
		return 0.05
	}
	return *c.ProcessNoiseVert
}

// GetBusSpeedVariance returns the wheel-speed measurement variance.
func (c *TuningConfig) GetBusSpeedVariance() float64 {
	if c.BusSpeedVariance == nil {
		return 2.0
	}
	return *c.BusSpeedVariance
}

// GetSatVarianceFloor returns the satellite variance lower bound.
func (c *TuningConfig) GetSatVarianceFloor() float64 {
	if c.SatVarianceFloor == nil {
		return 0.5
	}
	return *c.SatVarianceFloor
}

// GetSatVarianceScale returns the accuracy-to-variance scale.
func (c *TuningConfig) GetSatVarianceScale() float64 {
	if c.SatVarianceScale == nil {
		return 0.5
	}
	return *c.SatVarianceScale
}

// GetVisionNoiseScale returns the vision variance scale.
func (c *TuningConfig) GetVisionNoiseScale() float64 {
	if c.VisionNoiseScale == nil {
		return 0.5
	}
	return *c.VisionNoiseScale
}

// GetLighting returns the assumed scene lighting quality.
func (c *TuningConfig) GetLighting() float64 {
	if c.Lighting == nil {
		return 0.95
	}
	return *c.Lighting
}

// GetSerialPort returns the diagnostic adapter serial port path.
func (c *TuningConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyUSB0"
	}
	return *c.SerialPort
}

// GetBaudRate returns the serial baud rate.
func (c *TuningConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 38400
	}
	return *c.BaudRate
}

// GetRequestTimeout returns the per-request transport timeout.
func (c *TuningConfig) GetRequestTimeout() time.Duration {
	return c.duration(c.RequestTimeout, 200*time.Millisecond)
}

// GetPollBackoff returns the delay after a transport failure.
func (c *TuningConfig) GetPollBackoff() time.Duration {
	return c.duration(c.PollBackoff, 250*time.Millisecond)
}
