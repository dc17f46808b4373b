// Package mixer implements the real-time stereo audio mixing core: a
// per-source pipeline (ring buffer, delay line, fractional resampler,
// clock-feedback integrator) and the mixer orchestrator that dispatches the
// allocation-free render loop and exposes source lifecycle and control
// operations.
package mixer

import (
	"github.com/agalue/loopback-mixer/internal/ring"
)

// Mixer owns a list of sources, dispatches the real-time mix loop, and
// exposes registration and control operations. Source traversal order
// defines deterministic mix ordering — floating-point summation is not
// associative, so that order is part of the observable contract.
type Mixer struct {
	sampleRate     uint32
	maxBlockFrames int
	sources        []*Source
	nextSourceID   SourceID
	latencyProbe   *LatencyProbe
	micSourceID    SourceID // 0 means no microphone source has been designated
}

// New constructs an empty mixer and initializes a latency probe seeded
// with a 100ms, 440Hz sine reference at the given sample rate.
func New(sampleRate uint32, maxBlockFrames int) *Mixer {
	return &Mixer{
		sampleRate:     sampleRate,
		maxBlockFrames: maxBlockFrames,
		nextSourceID:   1,
		latencyProbe:   NewLatencyProbe(sampleRate, 440.0, int(sampleRate)/10),
	}
}

// SampleRate returns the mixer's configured sample rate in Hz.
func (m *Mixer) SampleRate() uint32 { return m.sampleRate }

// MaxBlockFrames returns the largest render quantum the mixer was sized for.
func (m *Mixer) MaxBlockFrames() int { return m.maxBlockFrames }

// AddSource allocates a locally backed ring buffer and a new source,
// returning the source's handle and its ring so a producer can push frames
// into it directly.
func (m *Mixer) AddSource(capacityFrames int) (SourceID, *ring.Buffer) {
	id := m.nextSourceID
	m.nextSourceID++
	r := ring.NewLocal(capacityFrames)
	m.sources = append(m.sources, newSource(id, r, m.maxBlockFrames))
	return id, r
}

// AddExternalSource attaches a caller-provided ring buffer (for example a
// shared-memory ring fed by a peer process) as a new source.
func (m *Mixer) AddExternalSource(r *ring.Buffer) SourceID {
	id := m.nextSourceID
	m.nextSourceID++
	m.sources = append(m.sources, newSource(id, r, m.maxBlockFrames))
	return id
}

func (m *Mixer) findSource(id SourceID) *Source {
	for _, s := range m.sources {
		if s.id == id {
			return s
		}
	}
	return nil
}

// WriteSource is a non-real-time producer helper wrapping the source's
// ring Push.
func (m *Mixer) WriteSource(id SourceID, data []float32, timestampNS ...uint64) (int, error) {
	if len(data)%Channels != 0 {
		return 0, &InvalidLengthError{Length: len(data)}
	}
	s := m.findSource(id)
	if s == nil {
		return 0, &UnknownSourceError{ID: id}
	}
	return s.Ring.Push(data, timestampNS...), nil
}

// SetGain adjusts a source's linear gain. Wait-free.
func (m *Mixer) SetGain(id SourceID, linear float32) error {
	s := m.findSource(id)
	if s == nil {
		return &UnknownSourceError{ID: id}
	}
	s.SetGain(linear)
	return nil
}

// SetMute toggles a source's mute flag. Wait-free.
func (m *Mixer) SetMute(id SourceID, muted bool) error {
	s := m.findSource(id)
	if s == nil {
		return &UnknownSourceError{ID: id}
	}
	s.SetMute(muted)
	return nil
}

// SetLatency configures latency compensation in frames for a source.
// Positive values add delay; negative values request an advance. Wait-free.
func (m *Mixer) SetLatency(id SourceID, frames int64) error {
	s := m.findSource(id)
	if s == nil {
		return &UnknownSourceError{ID: id}
	}
	s.SetLatency(frames)
	return nil
}

// SubmitClockFeedback runs the clock-feedback integrator for a source and
// updates its resample ratio atomically.
func (m *Mixer) SubmitClockFeedback(id SourceID, deviceTimestampNS, sourceTimestampNS uint64) error {
	s := m.findSource(id)
	if s == nil {
		return &UnknownSourceError{ID: id}
	}
	s.SubmitClockFeedback(deviceTimestampNS, sourceTimestampNS)
	return nil
}

// Process is the render entry point. It zeros output, then iterates
// sources in registration order, accumulating via mixInto. Returns frames
// rendered, or UnsupportedChannelsError if channels != 2. frames == 0 is a
// no-op that returns (0, nil), not an error.
func (m *Mixer) Process(output []float32, frames int, channels int) (int, error) {
	if channels != Channels {
		return 0, &UnsupportedChannelsError{Channels: channels}
	}
	if frames == 0 {
		return 0, nil
	}

	region := output[:frames*Channels]
	for i := range region {
		region[i] = 0
	}

	for _, s := range m.sources {
		s.mixInto(region, frames)
	}
	return frames, nil
}

// LatencyProbe returns the mixer's shared latency probe. Neither the HTTP
// API nor loopbackctl exposes latency measurement.
func (m *Mixer) LatencyProbe() *LatencyProbe {
	return m.latencyProbe
}

// SetMicrophoneSource designates a registered source as "the microphone"
// for status-display purposes only; it has no effect on mixing.
func (m *Mixer) SetMicrophoneSource(id SourceID) {
	m.micSourceID = id
}
