package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false", u)
		}
	}
	if IsValid("furlongs") {
		t.Error("IsValid accepted an unknown unit")
	}
}

func TestKmhRoundTrip(t *testing.T) {
	if got := KmhToMps(36); math.Abs(got-10) > 1e-12 {
		t.Errorf("KmhToMps(36) = %v, want 10", got)
	}
	if got := MpsToKmh(KmhToMps(50)); math.Abs(got-50) > 1e-9 {
		t.Errorf("round trip = %v, want 50", got)
	}
}

func TestConvertSpeed(t *testing.T) {
	cases := []struct {
		units string
		want  float64
	}{
		{MPS, 10},
		{KPH, 36},
		{MPH, 22.3694},
		{"unknown", 10},
	}
	for _, c := range cases {
		if got := ConvertSpeed(10, c.units); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("ConvertSpeed(10, %q) = %v, want %v", c.units, got, c.want)
		}
	}
}
