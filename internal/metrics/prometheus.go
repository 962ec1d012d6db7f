package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice activity detector
type Metrics struct {
	// Registry holds every metric below and backs the /metrics endpoint
	Registry *prometheus.Registry

	// Pipeline metrics
	FramesProcessed *prometheus.CounterVec
	StallErrors     prometheus.Counter
	RunDuration     prometheus.Histogram

	// Decision metrics
	Decisions  *prometheus.CounterVec
	VoiceRatio prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// Pipeline metrics
		FramesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_frames_processed_total",
			Help: "Total number of frames emitted per pipeline stage",
		}, []string{"stage"}),
		StallErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_stall_errors_total",
			Help: "Total number of pipeline stall errors",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_run_duration_seconds",
			Help:    "Wall-clock duration of detection runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),

		// Decision metrics
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_decisions_total",
			Help: "Total number of frame decisions by label",
		}, []string{"label"}),
		VoiceRatio: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vad_voice_ratio",
			Help: "Fraction of voiced frames in the most recent run",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vad_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordFrames adds produced frames for a stage
func (m *Metrics) RecordFrames(stage string, count int) {
	if count > 0 {
		m.FramesProcessed.WithLabelValues(stage).Add(float64(count))
	}
}

// RecordStall increments the stall error counter
func (m *Metrics) RecordStall() {
	m.StallErrors.Inc()
}

// RecordRun records the wall-clock duration of a completed run
func (m *Metrics) RecordRun(durationSeconds float64) {
	m.RunDuration.Observe(durationSeconds)
}

// RecordDecisionCounts adds completed-run decision totals by label
func (m *Metrics) RecordDecisionCounts(voiced, silence int) {
	m.Decisions.WithLabelValues("voice").Add(float64(voiced))
	m.Decisions.WithLabelValues("silence").Add(float64(silence))
}

// SetVoiceRatio publishes the voiced fraction of the last run
func (m *Metrics) SetVoiceRatio(ratio float64) {
	m.VoiceRatio.Set(ratio)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
