package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelayLineImposesTargetLag(t *testing.T) {
	d := newDelayLine(64)
	d.setTarget(8)

	for i := 0; i < 8; i++ {
		out := d.processFrame(stereoFrame{1, 1})
		assert.Equal(t, silentFrame, out)
	}

	out := d.processFrame(stereoFrame{1, 1})
	assert.Equal(t, stereoFrame{1, 1}, out)
}

func TestDelayLineSetTargetClampsToCapacity(t *testing.T) {
	d := newDelayLine(minDelayLineCapacity)
	d.setTarget(minDelayLineCapacity + 100)
	assert.Equal(t, minDelayLineCapacity-1, d.targetDelay)

	d.setTarget(-5)
	assert.Equal(t, 0, d.targetDelay)
}

func TestDelayLineDropFramesConsumesQueued(t *testing.T) {
	d := newDelayLine(64)
	d.setTarget(16)
	for i := 0; i < 10; i++ {
		d.processFrame(stereoFrame{1, 1})
	}

	dropped := d.dropFrames(5)
	assert.Equal(t, 5, dropped)
	assert.Equal(t, 5, d.length)
}

func TestDelayLineZeroTargetIsPassthrough(t *testing.T) {
	d := newDelayLine(64)
	out := d.processFrame(stereoFrame{0.3, -0.3})
	assert.Equal(t, stereoFrame{0.3, -0.3}, out)
}
