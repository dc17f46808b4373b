package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPushPopIdentity(t *testing.T) {
	b := NewLocal(64)
	frames := make([]float32, 10*Channels)
	for i := range frames {
		frames[i] = float32(i)
	}

	written := b.Push(frames)
	require.Equal(t, 10, written)

	out := make([]float32, 10*Channels)
	read := b.Pop(out)
	require.Equal(t, 10, read)
	assert.Equal(t, frames, out)
}

func TestPushReturnsZeroWhenFull(t *testing.T) {
	b := NewLocal(4)
	frames := make([]float32, 4*Channels)
	require.Equal(t, 4, b.Push(frames))

	before := b.AvailableRead()
	n := b.Push(frames)
	assert.Equal(t, 0, n)
	assert.Equal(t, before, b.AvailableRead())
}

func TestPartialPushWhenNearlyFull(t *testing.T) {
	b := NewLocal(4)
	require.Equal(t, 3, b.Push(make([]float32, 3*Channels)))
	n := b.Push(make([]float32, 4*Channels))
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, b.AvailableRead())
}

func TestDiscardClampsToAvailable(t *testing.T) {
	b := NewLocal(8)
	b.Push(make([]float32, 3*Channels))
	assert.Equal(t, 3, b.Discard(100))
	assert.Equal(t, 0, b.AvailableRead())
}

func TestAvailableNeverExceedsCapacity(t *testing.T) {
	b := NewLocal(8)
	for i := 0; i < 5; i++ {
		b.Push(make([]float32, 8*Channels))
		assert.LessOrEqual(t, b.AvailableRead(), b.CapacityFrames())
		b.Pop(make([]float32, 2*Channels))
	}
}

func TestWrapAroundPreservesOrder(t *testing.T) {
	b := NewLocal(4)
	// Force a wrap: fill, drain some, refill, drain the rest.
	require.Equal(t, 4, b.Push([]float32{1, 1, 2, 2, 3, 3, 4, 4}))
	out := make([]float32, 2*Channels)
	require.Equal(t, 2, b.Pop(out))
	assert.Equal(t, []float32{1, 1, 2, 2}, out)

	require.Equal(t, 2, b.Push([]float32{5, 5, 6, 6}))
	out2 := make([]float32, 4*Channels)
	require.Equal(t, 4, b.Pop(out2))
	assert.Equal(t, []float32{3, 3, 4, 4, 5, 5, 6, 6}, out2)
}

func TestLastTimestampReflectsMostRecentPush(t *testing.T) {
	b := NewLocal(8)
	b.Push(make([]float32, 2*Channels), 42)
	assert.EqualValues(t, 42, b.LastTimestampNS())
	b.Push(make([]float32, 2*Channels), 100)
	assert.EqualValues(t, 100, b.LastTimestampNS())
}

func TestSharedBufferRoundTrip(t *testing.T) {
	b, err := NewShared(16)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, 16, b.CapacityFrames())
	written := b.Push([]float32{0.25, -0.25, 0.5, -0.5})
	require.Equal(t, 2, written)

	out := make([]float32, 2*Channels)
	require.Equal(t, 2, b.Pop(out))
	assert.Equal(t, []float32{0.25, -0.25, 0.5, -0.5}, out)
}

// TestDropOldestOverrunPolicy models the producer-side overrun policy
// described in spec §4.1: write what fits, discard that many frames from
// the head, then write the remainder — yielding drop-oldest semantics.
func TestDropOldestOverrunPolicy(t *testing.T) {
	b := NewLocal(1024)
	total := 2048
	src := make([]float32, total*Channels)
	for i := 0; i < total; i++ {
		src[i*Channels] = float32(i)
		src[i*Channels+1] = float32(i)
	}

	offset := 0
	for offset < total {
		chunk := src[offset*Channels:]
		written := b.Push(chunk)
		offset += written
		if written == 0 {
			// Buffer is full: drop-oldest to make room for what remains.
			remaining := total - offset
			toDrop := remaining
			if toDrop > b.CapacityFrames() {
				toDrop = b.CapacityFrames()
			}
			b.Discard(toDrop)
		}
	}

	require.LessOrEqual(t, b.AvailableRead(), 1024)

	out := make([]float32, b.AvailableRead()*Channels)
	n := b.Pop(out)
	require.Equal(t, 1024, n)
	// The most recently written 1024 frames must be what remains.
	assert.Equal(t, float32(total-1024), out[0])
	assert.Equal(t, float32(total-1), out[(n-1)*Channels])
}

// TestPropertyAvailableNeverNegativeOrOverCapacity exercises arbitrary
// Push/Pop/Discard interleavings with rapid and checks the spec's core
// ring invariant holds after every operation.
func TestPropertyAvailableNeverNegativeOrOverCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 256).Draw(rt, "capacity")
		b := NewLocal(capacity)

		var totalWritten, totalRead int
		ops := rapid.IntRange(1, 50).Draw(rt, "ops")
		for i := 0; i < ops; i++ {
			switch rapid.IntRange(0, 2).Draw(rt, "op") {
			case 0:
				n := rapid.IntRange(0, capacity*2).Draw(rt, "pushFrames")
				written := b.Push(make([]float32, n*Channels))
				totalWritten += written
				assert.LessOrEqual(rt, written, n)
			case 1:
				n := rapid.IntRange(0, capacity*2).Draw(rt, "popFrames")
				read := b.Pop(make([]float32, n*Channels))
				totalRead += read
				assert.LessOrEqual(rt, read, n)
			case 2:
				n := rapid.IntRange(0, capacity*2).Draw(rt, "discardFrames")
				dropped := b.Discard(n)
				totalRead += dropped
				assert.LessOrEqual(rt, dropped, n)
			}
			avail := b.AvailableRead()
			assert.GreaterOrEqual(rt, avail, 0)
			assert.LessOrEqual(rt, avail, capacity)
		}
		assert.Equal(rt, totalWritten-totalRead, b.AvailableRead())
	})
}
