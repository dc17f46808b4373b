package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/agalue/loopback-mixer/internal/mixer"
)

type fakeStatusProvider struct {
	status mixer.Status
}

func (f fakeStatusProvider) Status() mixer.Status { return f.status }

func TestCollectorExportsAggregateAndPerSourceMetrics(t *testing.T) {
	provider := fakeStatusProvider{status: mixer.Status{
		SampleRate:   48000,
		BufferFrames: 960,
		LatencyMS:    20,
		BufferFill:   0.5,
		DriftPPM:     3.2,
		Sources: []mixer.SourceStatus{
			{ID: 1, Name: "Microphone", GainDB: -3, Muted: false, BufferFill: 0.4, RMS: 0.1, DriftPPM: 1.5},
			{ID: 2, Name: "Source #2", GainDB: 0, Muted: true, BufferFill: 0.6, RMS: 0.2, DriftPPM: -1.0},
		},
	}}

	collector := NewCollector(provider, time.Now().Add(-time.Minute))

	count := testutil.CollectAndCount(collector)
	// 5 aggregate gauges + 1 uptime gauge + 5 per-source gauges * 2 sources.
	require.Equal(t, 5+1+5*2, count)
}
