package mixer

import (
	"math"
	"sync/atomic"

	"github.com/agalue/loopback-mixer/internal/ring"
)

// SourceID is a monotonically assigned positive integer, stable for the
// mixer's lifetime. IDs start at 1; 0 never names a registered source and
// is used as the zero-value sentinel for "no microphone source configured".
type SourceID uint32

// Channels is the fixed channel count this core operates on.
const Channels = ring.Channels

// scratchHeadroom multiplies max block frames to size the source's scratch
// buffer so a pathological ratio/block-size combination never forces a
// reallocation inside mix_into; per spec it is exactly 4x.
const scratchHeadroom = 4

// Source composes a ring buffer, delay line, resampler state, clock
// integrator, gain, mute, latency setting, and a scratch buffer. It
// exposes Push (producer side, via its Ring) and mixInto (consumer side,
// invoked only from the mixer's render loop).
type Source struct {
	id   SourceID
	Ring *ring.Buffer

	gainBits atomic.Uint32 // linear amplitude, bit-cast float32
	muted    atomic.Bool
	latency  atomic.Int64 // signed desired latency in frames, any thread

	// Audio-thread-local state: touched only from mixInto.
	currentLatencySetting int64
	advanceDeficit        int

	delay     *delayLine
	resampler *resamplerState
	clock     *clockIntegrator

	scratch   []float32
	prevFrame stereoFrame
}

func newSource(id SourceID, r *ring.Buffer, maxBlockFrames int) *Source {
	s := &Source{
		id:        id,
		Ring:      r,
		delay:     newDelayLine(maxBlockFrames * 8),
		resampler: newResamplerState(),
		clock:     newClockIntegrator(),
		scratch:   make([]float32, maxBlockFrames*Channels*scratchHeadroom),
	}
	s.gainBits.Store(math.Float32bits(1.0))
	return s
}

// ID returns the source's stable identifier.
func (s *Source) ID() SourceID { return s.id }

// SetGain stores a new linear amplitude. Wait-free: a single atomic store.
func (s *Source) SetGain(gain float32) {
	s.gainBits.Store(math.Float32bits(gain))
}

// Gain returns the current linear amplitude.
func (s *Source) Gain() float32 {
	return math.Float32frombits(s.gainBits.Load())
}

// SetMute stores a new mute flag. Wait-free: a single atomic store.
func (s *Source) SetMute(muted bool) {
	s.muted.Store(muted)
}

// Muted reports the current mute flag.
func (s *Source) Muted() bool {
	return s.muted.Load()
}

// SetLatency stores a new desired signed latency in frames. Positive values
// add delay; negative values request an advance, realized as an advance
// deficit. Wait-free: a single atomic store.
func (s *Source) SetLatency(frames int64) {
	s.latency.Store(frames)
}

// LatencyFrames returns the audio-thread's current (applied) latency
// setting, not the possibly-newer desired value waiting to be applied.
func (s *Source) LatencyFrames() int64 {
	return s.currentLatencySetting
}

// SubmitClockFeedback runs the clock integrator and, if it updated the
// smoothed estimate, publishes the new ratio to the resampler atomically.
func (s *Source) SubmitClockFeedback(deviceTS, sourceTS uint64) {
	if smoothed, updated := s.clock.submitFeedback(deviceTS, sourceTS); updated {
		s.resampler.setRatio(float32(smoothed))
	}
}

// DriftPPM reports the clock integrator's current drift estimate.
func (s *Source) DriftPPM() float64 {
	return s.clock.driftPPM()
}

// BufferFillRatio reports the ring's current fill level clamped to [0,1].
func (s *Source) BufferFillRatio() float64 {
	capacity := s.Ring.CapacityFrames()
	if capacity == 0 {
		return 0
	}
	fill := float64(s.Ring.AvailableRead()) / float64(capacity)
	return clamp(fill, 0, 1)
}

// RMSEstimate derives an RMS level from prevFrame. prevFrame is written
// only by the audio thread and read here without synchronization when
// called from a status reader on another goroutine: a torn stereo read is
// acceptable since the mix itself is unaffected, per spec §4.5.
func (s *Source) RMSEstimate() float64 {
	l := float64(s.prevFrame[0])
	r := float64(s.prevFrame[1])
	return math.Sqrt((l*l + r*r) / 2)
}

// applyLatencyChange realizes a one-way step when the desired latency
// differs from the currently applied setting. Never blocks, never
// allocates.
func (s *Source) applyLatencyChange() {
	desired := s.latency.Load()
	if desired == s.currentLatencySetting {
		return
	}

	if desired >= 0 {
		s.delay.setTarget(int(desired))
		s.advanceDeficit = 0
	} else {
		deficit := int(-desired)
		s.delay.setTarget(0)
		dropped := s.delay.dropFrames(deficit)
		s.advanceDeficit = deficit - dropped
	}
	s.currentLatencySetting = desired
}

// mixInto runs the full per-source mix path: latency-change application,
// advance-deficit discard, fractional resampling, delay-line pass, and
// gain-scaled accumulation into output. It is O(frames), allocation-free,
// lock-free (aside from the underlying atomic ops), and never returns an
// error — real-time-path anomalies emit silence instead.
func (s *Source) mixInto(output []float32, frames int) {
	if s.muted.Load() {
		return
	}

	s.applyLatencyChange()

	if s.advanceDeficit > 0 {
		dropped := s.Ring.Discard(s.advanceDeficit)
		s.advanceDeficit -= dropped
	}

	ratio := s.resampler.ratio()
	expectedInput := int(math.Ceil(float64(frames)*ratio)) + 2
	scratchNeeded := expectedInput * Channels
	if scratchNeeded > len(s.scratch) {
		// Real-time path must not reallocate: emit silence for this block
		// rather than growing scratch.
		return
	}

	gain := s.Gain()

	// Seed frame 0 with prevFrame for interpolation continuity across
	// render blocks.
	s.scratch[0] = s.prevFrame[0]
	s.scratch[1] = s.prevFrame[1]
	totalInputFrames := 1

	toReadFrames := expectedInput - 1
	readSamples := toReadFrames * Channels
	read := s.Ring.Pop(s.scratch[Channels : Channels+readSamples])
	totalInputFrames += read

	if totalInputFrames < 2 {
		for i := 0; i < frames; i++ {
			delayed := s.delay.processFrame(silentFrame)
			base := i * Channels
			output[base] += delayed[0] * gain
			output[base+1] += delayed[1] * gain
		}
		return
	}

	lastAvailable := totalInputFrames - 1
	inputCursor := 0
	phase := s.resampler.phase

	for produced := 0; produced < frames; produced++ {
		var frame stereoFrame
		if inputCursor >= lastAvailable {
			frame = silentFrame
		} else {
			nextIdx := inputCursor + 1
			if nextIdx > lastAvailable {
				nextIdx = lastAvailable
			}
			frame = lerpFrame(readInterleaved(s.scratch, inputCursor), readInterleaved(s.scratch, nextIdx), phase)
		}

		phase += ratio
		if advance := math.Floor(phase); advance > 0 {
			phase -= advance
			inputCursor += int(advance)
			if inputCursor > lastAvailable {
				inputCursor = lastAvailable
			}
		}

		delayed := s.delay.processFrame(frame)
		base := produced * Channels
		output[base] += delayed[0] * gain
		output[base+1] += delayed[1] * gain
	}

	s.resampler.phase = phase
	s.prevFrame = readInterleaved(s.scratch, lastAvailable)
}

func readInterleaved(buf []float32, frameIdx int) stereoFrame {
	base := frameIdx * Channels
	return stereoFrame{buf[base], buf[base+1]}
}
