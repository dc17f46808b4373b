package mixer

import "math"

// SourceStatus is a per-source diagnostics snapshot exposed to developer
// tooling (HTTP status surface, TUI console, Prometheus export). It is
// assembled outside the real-time path.
type SourceStatus struct {
	ID            SourceID `json:"id"`
	Name          string   `json:"name"`
	GainLinear    float32  `json:"gain_linear"`
	GainDB        float32  `json:"gain_db"`
	Muted         bool     `json:"muted"`
	LatencyFrames int64    `json:"latency_frames"`
	BufferFill    float64  `json:"buffer_fill"`
	RMS           float64  `json:"rms"`
	DriftPPM      float64  `json:"drift_ppm"`
}

// Status is an aggregated mixer snapshot used by control surfaces.
type Status struct {
	SampleRate   uint32         `json:"sample_rate"`
	BufferFrames int            `json:"buffer_frames"`
	LatencyMS    float64        `json:"latency_ms"`
	BufferFill   float64        `json:"buffer_fill"`
	DriftPPM     float64        `json:"drift_ppm"`
	Sources      []SourceStatus `json:"sources"`
}

// Status assembles a diagnostics snapshot of the mixer and all registered
// sources. Safe to call from any goroutine; reads source state without
// synchronizing with the render thread (see RMSEstimate).
func (m *Mixer) Status() Status {
	sources := make([]SourceStatus, 0, len(m.sources))
	var totalFill, totalDrift float64

	for _, s := range m.sources {
		name := sourceName(s.id)
		if m.micSourceID != 0 && s.id == m.micSourceID {
			name = "Microphone"
		}

		gainLinear := s.Gain()
		gainDB := float32(math.Inf(-1))
		if gainLinear > 0 {
			gainDB = 20 * float32(math.Log10(float64(gainLinear)))
		}

		fill := clamp(s.BufferFillRatio(), 0, 1)
		drift := s.DriftPPM()
		totalFill += fill
		totalDrift += math.Abs(drift)

		sources = append(sources, SourceStatus{
			ID:            s.id,
			Name:          name,
			GainLinear:    gainLinear,
			GainDB:        gainDB,
			Muted:         s.Muted(),
			LatencyFrames: s.LatencyFrames(),
			BufferFill:    fill,
			RMS:           clamp(s.RMSEstimate(), 0, 1),
			DriftPPM:      drift,
		})
	}

	var avgFill, avgDrift float64
	if len(sources) > 0 {
		avgFill = totalFill / float64(len(sources))
		avgDrift = totalDrift / float64(len(sources))
	}

	latencyMS := 1000 * float64(m.maxBlockFrames) / float64(m.sampleRate)

	return Status{
		SampleRate:   m.sampleRate,
		BufferFrames: m.maxBlockFrames,
		LatencyMS:    latencyMS,
		BufferFill:   avgFill,
		DriftPPM:     avgDrift,
		Sources:      sources,
	}
}

func sourceName(id SourceID) string {
	return "Source #" + itoa(uint32(id))
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
