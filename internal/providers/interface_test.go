package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInstanceState(t *testing.T) {
	tests := map[string]InstanceState{
		"running":       StateRunning,
		"RUNNING":       StateRunning,
		" pending ":     StatePending,
		"shutting-down": StateShuttingDown,
		"stopped":       StateStopped,
		"paused":        StateUnknown,
		"":              StateUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseInstanceState(in), in)
	}
}
