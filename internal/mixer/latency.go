package mixer

import (
	"math"

	"github.com/agalue/loopback-mixer/internal/ring"
)

// LatencyReport captures a latency probe's best-fit offset between a
// reference tone and a recorded buffer.
type LatencyReport struct {
	OffsetFrames int
	OffsetSeconds float64
	Correlation   float64 // normalized cross-correlation in [0,1]
	MeasuredAtNS  uint64
}

// LatencyProbe is a deterministic sine generator and latency estimator,
// used to measure end-to-end latency through the mixer (not on the
// real-time path itself).
type LatencyProbe struct {
	sampleRate       uint32
	defaultFrequency float64
	reference        []float32
}

// NewLatencyProbe builds a probe with a reference sine of windowFrames
// frames at defaultFrequencyHz.
func NewLatencyProbe(sampleRate uint32, defaultFrequencyHz float64, windowFrames int) *LatencyProbe {
	reference := make([]float32, windowFrames*Channels)
	writeSine(defaultFrequencyHz, sampleRate, reference)
	return &LatencyProbe{
		sampleRate:       sampleRate,
		defaultFrequency: defaultFrequencyHz,
		reference:        reference,
	}
}

// EmitSine renders a sine wave into out, returning frames written. A
// non-positive frequencyHz falls back to the probe's default frequency.
func (p *LatencyProbe) EmitSine(frequencyHz float64, out []float32) int {
	frames := len(out) / Channels
	if frames == 0 {
		return 0
	}
	freq := frequencyHz
	if freq <= 0 {
		freq = p.defaultFrequency
	}
	writeSine(freq, p.sampleRate, out)
	return frames
}

// Measure computes latency by finding the integer frame offset that
// maximizes normalized cross-correlation between the reference and a
// same-length slice of recorded, over offset in [0, len(recorded)-len(reference)].
func (p *LatencyProbe) Measure(recorded []float32) LatencyReport {
	recordedFrames := len(recorded) / Channels
	referenceFrames := len(p.reference) / Channels
	if recordedFrames == 0 || referenceFrames == 0 {
		return LatencyReport{MeasuredAtNS: ring.MonotonicTimestampNS()}
	}

	maxOffset := recordedFrames - referenceFrames
	if maxOffset <= 0 {
		return p.singleSliceReport(recorded)
	}

	referenceNorm := energy(p.reference)
	bestOffset := 0
	bestCorr := 0.0

	for offset := 0; offset <= maxOffset; offset++ {
		start := offset * Channels
		end := start + len(p.reference)
		corr := correlation(p.reference, recorded[start:end], referenceNorm)
		if corr > bestCorr {
			bestOffset, bestCorr = offset, corr
		}
	}

	return LatencyReport{
		OffsetFrames:  bestOffset,
		OffsetSeconds: float64(bestOffset) / float64(p.sampleRate),
		Correlation:   bestCorr,
		MeasuredAtNS:  ring.MonotonicTimestampNS(),
	}
}

func (p *LatencyProbe) singleSliceReport(recorded []float32) LatencyReport {
	referenceNorm := energy(p.reference)
	recordedNorm := energy(recorded)
	corr := 0.0
	if referenceNorm > 0 && recordedNorm > 0 {
		corr = math.Max(0, dot(p.reference, recorded)/(referenceNorm*recordedNorm))
	}
	return LatencyReport{Correlation: corr, MeasuredAtNS: ring.MonotonicTimestampNS()}
}

func writeSine(frequency float64, sampleRate uint32, out []float32) {
	step := frequency / float64(sampleRate)
	phase := 0.0
	for i := 0; i+1 < len(out); i += Channels {
		value := float32(math.Sin(phase*2*math.Pi) * 0.5)
		out[i] = value
		out[i+1] = value
		_, phase = math.Modf(phase + step)
		if phase < 0 {
			phase += 1
		}
	}
}

func correlation(reference, recorded []float32, referenceNorm float64) float64 {
	recordedNorm := energy(recorded)
	if referenceNorm == 0 || recordedNorm == 0 {
		return 0
	}
	return dot(reference, recorded) / (referenceNorm * recordedNorm)
}

func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func energy(buf []float32) float64 {
	sum := 0.0
	for _, v := range buf {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
