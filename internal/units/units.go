// Package units provides shared speed-unit constants and conversions. The
// estimator and the diagnostic cache work in m/s; the bus reports ground
// speed in km/h and the API can serve either.
package units

// Unit constants
const (
	MPS = "mps"
	MPH = "mph"
	KPH = "kph"
)

// ValidUnits contains all unit values accepted by the API.
var ValidUnits = []string{MPS, MPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	for _, v := range ValidUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// KmhToMps converts a speed in km/h to m/s.
func KmhToMps(kmh float64) float64 {
	return kmh / 3.6
}

// MpsToKmh converts a speed in m/s to km/h.
func MpsToKmh(mps float64) float64 {
	return mps * 3.6
}

// ConvertSpeed converts a speed in m/s to the target units. Unknown units
// return the value unchanged.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * 2.23694
	case KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}
