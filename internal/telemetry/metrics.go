// Package telemetry exports mixer diagnostics as Prometheus metrics,
// collected at scrape time rather than pushed from the render thread.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agalue/loopback-mixer/internal/mixer"
)

// StatusProvider exposes a mixer status snapshot for scraping.
type StatusProvider interface {
	Status() mixer.Status
}

// Collector is a prometheus.Collector that gathers mixer diagnostics at
// scrape time, never from the real-time render path.
type Collector struct {
	mx        StatusProvider
	startTime time.Time

	sampleRateDesc   *prometheus.Desc
	bufferFramesDesc *prometheus.Desc
	latencyMsDesc    *prometheus.Desc
	bufferFillDesc   *prometheus.Desc
	driftPPMDesc     *prometheus.Desc
	sourceGainDesc   *prometheus.Desc
	sourceMutedDesc  *prometheus.Desc
	sourceFillDesc   *prometheus.Desc
	sourceRMSDesc    *prometheus.Desc
	sourceDriftDesc  *prometheus.Desc
	uptimeDesc       *prometheus.Desc
}

// NewCollector creates a metrics collector backed by mx.
func NewCollector(mx StatusProvider, startTime time.Time) *Collector {
	return &Collector{
		mx:        mx,
		startTime: startTime,

		sampleRateDesc: prometheus.NewDesc(
			"loopback_mixer_sample_rate_hz",
			"Configured mixer sample rate in Hertz",
			nil, nil,
		),
		bufferFramesDesc: prometheus.NewDesc(
			"loopback_mixer_buffer_frames",
			"Maximum render quantum the mixer was sized for, in frames",
			nil, nil,
		),
		latencyMsDesc: prometheus.NewDesc(
			"loopback_mixer_latency_ms",
			"Effective render latency in milliseconds based on buffer size",
			nil, nil,
		),
		bufferFillDesc: prometheus.NewDesc(
			"loopback_mixer_buffer_fill_ratio",
			"Average queued buffer fill across active sources (0-1)",
			nil, nil,
		),
		driftPPMDesc: prometheus.NewDesc(
			"loopback_mixer_drift_ppm",
			"Average absolute clock drift estimate across sources, in parts per million",
			nil, nil,
		),
		sourceGainDesc: prometheus.NewDesc(
			"loopback_mixer_source_gain_db",
			"Per-source gain in decibels",
			[]string{"source_id", "name"}, nil,
		),
		sourceMutedDesc: prometheus.NewDesc(
			"loopback_mixer_source_muted",
			"Per-source mute state (1=muted, 0=active)",
			[]string{"source_id", "name"}, nil,
		),
		sourceFillDesc: prometheus.NewDesc(
			"loopback_mixer_source_buffer_fill_ratio",
			"Per-source ring buffer fill ratio (0-1)",
			[]string{"source_id", "name"}, nil,
		),
		sourceRMSDesc: prometheus.NewDesc(
			"loopback_mixer_source_rms",
			"Per-source estimated RMS level (0-1)",
			[]string{"source_id", "name"}, nil,
		),
		sourceDriftDesc: prometheus.NewDesc(
			"loopback_mixer_source_drift_ppm",
			"Per-source clock drift estimate in parts per million",
			[]string{"source_id", "name"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"loopback_mixer_uptime_seconds",
			"Seconds since the mixer daemon process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sampleRateDesc
	ch <- c.bufferFramesDesc
	ch <- c.latencyMsDesc
	ch <- c.bufferFillDesc
	ch <- c.driftPPMDesc
	ch <- c.sourceGainDesc
	ch <- c.sourceMutedDesc
	ch <- c.sourceFillDesc
	ch <- c.sourceRMSDesc
	ch <- c.sourceDriftDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector, reading a fresh status snapshot
// from the mixer on every scrape.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	status := c.mx.Status()

	ch <- prometheus.MustNewConstMetric(c.sampleRateDesc, prometheus.GaugeValue, float64(status.SampleRate))
	ch <- prometheus.MustNewConstMetric(c.bufferFramesDesc, prometheus.GaugeValue, float64(status.BufferFrames))
	ch <- prometheus.MustNewConstMetric(c.latencyMsDesc, prometheus.GaugeValue, status.LatencyMS)
	ch <- prometheus.MustNewConstMetric(c.bufferFillDesc, prometheus.GaugeValue, status.BufferFill)
	ch <- prometheus.MustNewConstMetric(c.driftPPMDesc, prometheus.GaugeValue, status.DriftPPM)

	for _, s := range status.Sources {
		id := fmt.Sprintf("%d", s.ID)

		ch <- prometheus.MustNewConstMetric(c.sourceGainDesc, prometheus.GaugeValue, float64(s.GainDB), id, s.Name)

		muted := 0.0
		if s.Muted {
			muted = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.sourceMutedDesc, prometheus.GaugeValue, muted, id, s.Name)
		ch <- prometheus.MustNewConstMetric(c.sourceFillDesc, prometheus.GaugeValue, s.BufferFill, id, s.Name)
		ch <- prometheus.MustNewConstMetric(c.sourceRMSDesc, prometheus.GaugeValue, s.RMS, id, s.Name)
		ch <- prometheus.MustNewConstMetric(c.sourceDriftDesc, prometheus.GaugeValue, s.DriftPPM, id, s.Name)
	}

	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}
