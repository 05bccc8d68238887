package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline-data/speedfusion/internal/obd"
)

// The scripted adapter must answer every command the poller can issue,
// otherwise dev mode would silently run on a partial cache.
func TestDevResponsesCoverAllCommands(t *testing.T) {
	for _, cmd := range obd.InitCommands {
		assert.Contains(t, devResponses, cmd)
	}
	for _, tier := range [][]obd.Command{obd.Tier1Commands, obd.Tier2Commands, obd.Tier3Commands} {
		for _, cmd := range tier {
			assert.Contains(t, devResponses, cmd.Request, "signal %s has no scripted response", cmd.Signal)
		}
	}
}

func TestDevResponsesDecode(t *testing.T) {
	for _, tier := range [][]obd.Command{obd.Tier1Commands, obd.Tier2Commands, obd.Tier3Commands} {
		for _, cmd := range tier {
			value, err := obd.DecodeResponse(cmd, devResponses[cmd.Request])
			require.NoError(t, err, "signal %s", cmd.Signal)
			assert.False(t, value < -50 || value > 50000, "signal %s decodes to implausible %f", cmd.Signal, value)
		}
	}
}

func TestDevSpeedIsFiftyKmh(t *testing.T) {
	cmd, ok := obd.CommandBySignal(obd.SignalVehicleSpeed)
	require.True(t, ok)
	value, err := obd.DecodeResponse(cmd, devResponses[cmd.Request])
	require.NoError(t, err)
	assert.Equal(t, 50.0, value)
}
