package mixer

import (
	"math"
	"sync/atomic"
)

// minResampleRatio and maxResampleRatio bound the drift-correction
// resampler. Dynamic sample-rate conversion across arbitrary ratios is a
// Non-goal; this is a narrow drift-correction range only.
const (
	minResampleRatio = 0.95
	maxResampleRatio = 1.05
)

// resamplerState holds a linearly-interpolating fractional resampler's
// ratio and phase. The ratio is mutated from a non-audio thread (the clock
// integrator) and read from the audio thread; it is stored as the bit
// pattern of a float32 in a uint32 so the transfer is a single atomic
// store/load with no locking. Per design notes, only the producing thread
// needs atomicity for its own consistency — the audio thread's relaxed load
// does not need to synchronize any other data, since ratio is the only
// value carried across.
type resamplerState struct {
	ratioBits atomic.Uint32
	phase     float64 // audio-thread-local, persists across render blocks
}

func newResamplerState() *resamplerState {
	r := &resamplerState{}
	r.ratioBits.Store(math.Float32bits(1.0))
	return r
}

func (r *resamplerState) setRatio(ratio float32) {
	r.ratioBits.Store(math.Float32bits(ratio))
}

// ratio returns the current ratio clamped to the supported drift-correction
// range, as required on every use.
func (r *resamplerState) ratio() float64 {
	raw := float64(math.Float32frombits(r.ratioBits.Load()))
	if raw < minResampleRatio {
		return minResampleRatio
	}
	if raw > maxResampleRatio {
		return maxResampleRatio
	}
	return raw
}

func lerpFrame(a, b stereoFrame, t float64) stereoFrame {
	return stereoFrame{
		a[0] + float32(t)*(b[0]-a[0]),
		a[1] + float32(t)*(b[1]-a[1]),
	}
}
