package obd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCommand(t *testing.T, sig Signal) Command {
	t.Helper()
	cmd, ok := CommandBySignal(sig)
	require.True(t, ok, "no command for signal %s", sig)
	return cmd
}

func TestDecodeLiteralVectors(t *testing.T) {
	cases := []struct {
		sig  Signal
		raw  string
		want float64
	}{
		{SignalEngineRPM, "410C1AF2", 1726.0},        // (0x1A*256 + 0xF2) / 4
		{SignalVehicleSpeed, "410D32", 50.0},         // 0x32 km/h
		{SignalCoolantTemp, "410550", 40.0},          // 0x50 - 40
		{SignalThrottle, "4111FF", 100.0},            // 0xFF * 100 / 255
		{SignalTimingAdvance, "410E80", 0.0},         // (0x80 - 128) / 2
		{SignalMassAirFlow, "41100BB8", 30.0},        // 0x0BB8 / 100
		{SignalLambda, "41448000", 1.0},              // 0x8000 / 32768
		{SignalFuelRailPressure, "41230064", 1000.0}, // 0x64 * 10
		{SignalSupplyVoltage, "41423A98", 15.0},      // 0x3A98 / 1000
		{SignalAmbientTemp, "41460A", -30.0},         // 0x0A - 40
	}

	for _, c := range cases {
		cmd := mustCommand(t, c.sig)
		got, err := DecodeResponse(cmd, c.raw)
		require.NoError(t, err, "decode %s %q", c.sig, c.raw)
		assert.InDelta(t, c.want, got, 1e-9, "decode %s %q", c.sig, c.raw)
	}
}

func TestDecodeToleratesFraming(t *testing.T) {
	cmd := mustCommand(t, SignalEngineRPM)

	// Spaced bytes, echoed request, CR/LF noise: all must decode the same.
	for _, raw := range []string{
		"41 0C 1A F2",
		"010C\r41 0C 1A F2\r\r",
		"\r\n41 0c 1a f2 \r",
	} {
		got, err := DecodeResponse(cmd, raw)
		require.NoError(t, err, "raw %q", raw)
		assert.InDelta(t, 1726.0, got, 1e-9)
	}
}

func TestDecodeErrorTokens(t *testing.T) {
	cmd := mustCommand(t, SignalVehicleSpeed)

	for _, raw := range []string{
		"NO DATA",
		"SEARCHING...",
		"UNABLE TO CONNECT",
		"STOPPED",
		"BUS ERROR",
		"?",
	} {
		_, err := DecodeResponse(cmd, raw)
		assert.ErrorIs(t, err, ErrNoData, "raw %q must decode to no value", raw)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cmd := mustCommand(t, SignalEngineRPM)

	for _, raw := range []string{
		"",          // empty
		"410C",      // prefix only, no data bytes
		"410C1A",    // short one byte
		"420C1AF2",  // wrong mode echo
		"410C1AZZ",  // bad hex
	} {
		_, err := DecodeResponse(cmd, raw)
		assert.ErrorIs(t, err, ErrBadResponse, "raw %q", raw)
	}
}

func TestResponsePrefix(t *testing.T) {
	assert.Equal(t, "410C", responsePrefix("010C"))
	assert.Equal(t, "4105", responsePrefix("0105"))
	// Degenerate requests fall through untouched.
	assert.Equal(t, "01", responsePrefix("01"))
}
