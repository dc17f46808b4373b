package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockIntegratorIgnoresFirstSample(t *testing.T) {
	c := newClockIntegrator()
	ratio, updated := c.submitFeedback(1_000_000, 1_000_000)
	assert.False(t, updated)
	assert.Equal(t, 1.0, ratio)
}

func TestClockIntegratorIgnoresNonPositiveDeltas(t *testing.T) {
	c := newClockIntegrator()
	c.submitFeedback(1_000_000, 1_000_000)
	_, updated := c.submitFeedback(1_000_000, 1_000_000)
	assert.False(t, updated)
}

func TestClockIntegratorClampsRawRatio(t *testing.T) {
	c := newClockIntegrator()
	c.submitFeedback(0, 0)
	ratio, updated := c.submitFeedback(1_000_000, 2_000_000)
	assert.True(t, updated)
	assert.InDelta(t, 1.0+clockAlpha*(clockRatioMax-1.0), ratio, 1e-9)
}

func TestClockIntegratorDriftPPMTracksSmoothedRatio(t *testing.T) {
	c := newClockIntegrator()
	c.smoothedRatio = 1.001
	assert.InDelta(t, 1000.0, c.driftPPM(), 1e-9)
}
