package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.validate())
}

func TestValidateRejectsNonPositiveSampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRate = 0
	require.Error(t, cfg.validate())
}

func TestValidateRejectsNonPositiveMaxBlockFrames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBlockFrames = -1
	require.Error(t, cfg.validate())
}

func TestValidateRejectsUndersizedSourceCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultSourceCapacityFrames = cfg.MaxBlockFrames
	require.Error(t, cfg.validate())
}

func TestParseLogLevelKnownValues(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		_, err := ParseLogLevel(s)
		require.NoError(t, err)
	}
}

func TestParseLogLevelRejectsUnknownValue(t *testing.T) {
	_, err := ParseLogLevel("verbose")
	require.Error(t, err)
}
