// Package obd implements the diagnostic bus channel: hex-coded parameter
// requests over a half-duplex serial adapter, per-signal response decoding,
// and a tiered-frequency poller feeding a freshness-stamped cache.
package obd

// Signal identifies one decoded diagnostic value.
type Signal int

const (
	// Tier 1: requested every poll tick.
	SignalEngineRPM Signal = iota
	SignalVehicleSpeed
	SignalManifoldPressure
	SignalThrottle

	// Tier 2: requested every 5th tick.
	SignalCoolantTemp
	SignalIntakeTemp
	SignalTimingAdvance
	SignalMassAirFlow
	SignalLambda
	SignalEngineLoad

	// Tier 3: requested every 20th tick.
	SignalSupplyVoltage
	SignalFuelLevel
	SignalBarometricPressure
	SignalAmbientTemp
	SignalFuelRailPressure

	numSignals
)

// String returns a short name for the signal, used in logs.
func (s Signal) String() string {
	names := [...]string{
		"engine_rpm", "vehicle_speed", "manifold_pressure", "throttle",
		"coolant_temp", "intake_temp", "timing_advance", "mass_air_flow",
		"lambda", "engine_load",
		"supply_voltage", "fuel_level", "barometric_pressure",
		"ambient_temp", "fuel_rail_pressure",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "unknown"
	}
	return names[s]
}

// Command describes one parameter request: the mode+PID hex string sent on
// the wire, the number of data bytes expected back, and the formula turning
// those bytes into a physical value.
type Command struct {
	Signal  Signal
	Request string // two-character mode + two-character PID, e.g. "010C"
	Bytes   int    // expected data bytes after the echoed prefix
	Decode  func(data []byte) float64
	Units   string
}

// The standard mode-01 command set, grouped by polling tier.
var (
	Tier1Commands = []Command{
		{SignalEngineRPM, "010C", 2, func(d []byte) float64 {
			return float64(int(d[0])*256+int(d[1])) / 4.0
		}, "rpm"},
		{SignalVehicleSpeed, "010D", 1, func(d []byte) float64 {
			return float64(d[0])
		}, "km/h"},
		{SignalManifoldPressure, "010B", 1, func(d []byte) float64 {
			return float64(d[0])
		}, "kPa"},
		{SignalThrottle, "0111", 1, func(d []byte) float64 {
			return float64(d[0]) * 100.0 / 255.0
		}, "%"},
	}

	Tier2Commands = []Command{
		{SignalCoolantTemp, "0105", 1, func(d []byte) float64 {
			return float64(d[0]) - 40.0
		}, "degC"},
		{SignalIntakeTemp, "010F", 1, func(d []byte) float64 {
			return float64(d[0]) - 40.0
		}, "degC"},
		{SignalTimingAdvance, "010E", 1, func(d []byte) float64 {
			return (float64(d[0]) - 128.0) / 2.0
		}, "deg"},
		{SignalMassAirFlow, "0110", 2, func(d []byte) float64 {
			return float64(int(d[0])*256+int(d[1])) / 100.0
		}, "g/s"},
		{SignalLambda, "0144", 2, func(d []byte) float64 {
			return float64(int(d[0])*256+int(d[1])) / 32768.0
		}, "ratio"},
		{SignalEngineLoad, "0104", 1, func(d []byte) float64 {
			return float64(d[0]) * 100.0 / 255.0
		}, "%"},
	}

	Tier3Commands = []Command{
		{SignalSupplyVoltage, "0142", 2, func(d []byte) float64 {
			return float64(int(d[0])*256+int(d[1])) / 1000.0
		}, "V"},
		{SignalFuelLevel, "012F", 1, func(d []byte) float64 {
			return float64(d[0]) * 100.0 / 255.0
		}, "%"},
		{SignalBarometricPressure, "0133", 1, func(d []byte) float64 {
			return float64(d[0])
		}, "kPa"},
		{SignalAmbientTemp, "0146", 1, func(d []byte) float64 {
			return float64(d[0]) - 40.0
		}, "degC"},
		{SignalFuelRailPressure, "0123", 2, func(d []byte) float64 {
			return float64(int(d[0])*256+int(d[1])) * 10.0
		}, "kPa"},
	}
)

// InitCommands is the adapter configuration batch sent once after opening the
// link: reset, echo off, linefeeds off, spaces off, automatic protocol.
var InitCommands = []string{"ATZ", "ATE0", "ATL0", "ATS0", "ATSP0"}

// CommandBySignal returns the command for a signal, or false if unknown.
func CommandBySignal(s Signal) (Command, bool) {
	for _, tier := range [][]Command{Tier1Commands, Tier2Commands, Tier3Commands} {
		for _, c := range tier {
			if c.Signal == s {
				return c, true
			}
		}
	}
	return Command{}, false
}
