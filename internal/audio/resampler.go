package audio

// Resampler performs linear-interpolation resampling between a capture or
// playback device's native rate and the mixer's operating rate. It is a
// one-time device-rate match, not the per-block drift corrector the mixer
// runs internally — by the time audio reaches Mixer.WriteSource it is
// already at the mixer's sample rate.
type Resampler struct {
	fromRate   float64
	toRate     float64
	ratio      float64 // toRate / fromRate
	lastSample float32 // carries continuity across chunk boundaries
}

// NewResampler creates a resampler converting from fromRate to toRate, both
// in Hz.
func NewResampler(fromRate, toRate int) *Resampler {
	return &Resampler{
		fromRate: float64(fromRate),
		toRate:   float64(toRate),
		ratio:    float64(toRate) / float64(fromRate),
	}
}

// Resample converts a block of mono samples via linear interpolation.
// Sufficient for upsampling a device's native rate up to the mixer's rate;
// downsampling should go through PolyphaseResampler instead to avoid
// aliasing.
func (r *Resampler) Resample(input []float32) []float32 {
	if r.ratio == 1.0 {
		return input
	}

	inputLen := len(input)
	if inputLen == 0 {
		return input
	}

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

// ResampleInPlace constructs a one-shot Resampler and converts input. For a
// continuous device stream, keep a Resampler around instead so lastSample
// carries across calls.
func ResampleInPlace(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return input
	}
	return NewResampler(fromRate, toRate).Resample(input)
}
