package audio

import "math"

// PolyphaseResampler downsamples with an anti-aliasing low-pass filter, for
// the case where a capture device's native rate is higher than the mixer's
// operating rate (e.g. a 48kHz device feeding a 44.1kHz mixer). Plain linear
// interpolation would fold high-frequency content back into the passband;
// this filters it out first. A 64-tap sinc filter windowed with a Hamming
// window keeps the cost bounded while still rejecting aliasing adequately
// for a device-rate match (this is not the per-block drift resampler the
// mixer runs internally, which stays at a near-1.0 ratio and never needs
// anti-aliasing).
type PolyphaseResampler struct {
	fromRate   int
	toRate     int
	ratio      float64
	filterLen  int
	filter     []float32
	history    []float32 // tail of the previous input block, for filter continuity
	lastSample float32
}

// NewPolyphaseResampler builds a resampler for device-rate conversion from
// fromRate to toRate, both in Hz. Use it for downsampling; for upsampling,
// Resampler's linear interpolation is cheaper and sufficient.
func NewPolyphaseResampler(fromRate, toRate int) *PolyphaseResampler {
	ratio := float64(toRate) / float64(fromRate)
	const filterLen = 64

	cutoff := 0.5
	if ratio < 1.0 {
		cutoff = ratio * 0.5 // filter at the output Nyquist frequency
	}

	filter := make([]float32, filterLen)
	for i := 0; i < filterLen; i++ {
		n := float64(i) - float64(filterLen-1)/2.0
		if n == 0 {
			filter[i] = float32(2.0 * cutoff)
			continue
		}
		sinc := math.Sin(2.0*math.Pi*cutoff*n) / (math.Pi * n)
		window := 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/float64(filterLen-1))
		filter[i] = float32(sinc * window)
	}

	var sum float32
	for _, f := range filter {
		sum += f
	}
	for i := range filter {
		filter[i] /= sum
	}

	return &PolyphaseResampler{
		fromRate:  fromRate,
		toRate:    toRate,
		ratio:     ratio,
		filterLen: filterLen,
		filter:    filter,
		history:   make([]float32, filterLen),
	}
}

// Resample converts a block of mono samples, routing to the FIR-filtered
// path when downsampling and to linear interpolation when upsampling.
func (r *PolyphaseResampler) Resample(input []float32) []float32 {
	if r.ratio == 1.0 {
		return input
	}
	if len(input) == 0 {
		return input
	}
	if r.ratio > 1.0 {
		return r.upsample(input)
	}
	return r.downsample(input)
}

func (r *PolyphaseResampler) upsample(input []float32) []float32 {
	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	output := make([]float32, outputLen)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		sample1 := r.lastSample
		if srcIdx < inputLen {
			sample1 = input[srcIdx]
		}

		sample2 := sample1
		if srcIdx+1 < inputLen {
			sample2 = input[srcIdx+1]
		} else if srcIdx < inputLen {
			sample2 = input[inputLen-1]
		}

		output[i] = sample1 + (sample2-sample1)*frac
	}

	r.lastSample = input[inputLen-1]
	return output
}

func (r *PolyphaseResampler) downsample(input []float32) []float32 {
	inputLen := len(input)
	outputLen := int(float64(inputLen) * r.ratio)
	output := make([]float32, outputLen)

	combined := append(r.history, input...)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos) + len(r.history)

		var sample float32
		for j := 0; j < r.filterLen; j++ {
			idx := srcIdx - r.filterLen/2 + j
			if idx >= 0 && idx < len(combined) {
				sample += combined[idx] * r.filter[j]
			}
		}
		output[i] = sample
	}

	if inputLen >= r.filterLen {
		copy(r.history, input[inputLen-r.filterLen:])
	} else {
		shift := r.filterLen - inputLen
		copy(r.history, r.history[inputLen:])
		copy(r.history[shift:], input)
	}

	return output
}

// ResamplePolyphase is a one-shot convenience wrapper: polyphase filtering
// when downsampling, linear interpolation (via ResampleInPlace) when
// upsampling. Prefer constructing a PolyphaseResampler directly for a
// continuous device stream so filter history carries across calls.
func ResamplePolyphase(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return input
	}
	if toRate < fromRate {
		return NewPolyphaseResampler(fromRate, toRate).Resample(input)
	}
	return ResampleInPlace(input, fromRate, toRate)
}
