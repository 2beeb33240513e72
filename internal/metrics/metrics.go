// Package metrics exposes capture and transcription counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dictate"

// Outcome labels for SessionsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeEmpty     = "empty"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the collectors for one process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SessionsTotal         *prometheus.CounterVec
	SessionsActive        prometheus.Gauge
	SessionDuration       prometheus.Histogram
	CapturedSamples       prometheus.Counter
	DroppedBlocks         prometheus.Counter
	TranscriptionsTotal   *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	InputLevel            prometheus.Gauge
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Capture sessions by outcome",
		}, []string{"outcome"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Capture sessions currently holding the device",
		}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time from start to lifecycle end",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		CapturedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captured_samples_total",
			Help:      "Samples appended to session accumulators",
		}),
		DroppedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_blocks_total",
			Help:      "Blocks evicted from the capture queue on overflow",
		}),
		TranscriptionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription handoffs by backend and status",
		}, []string{"backend", "status"}),
		TranscriptionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "Time spent inside the transcription backend",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		InputLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "input_level",
			Help:      "Most recent 0..100 input level",
		}),
	}

	registry.MustRegister(
		m.SessionsTotal,
		m.SessionsActive,
		m.SessionDuration,
		m.CapturedSamples,
		m.DroppedBlocks,
		m.TranscriptionsTotal,
		m.TranscriptionDuration,
		m.InputLevel,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// SessionEnded records the terminal outcome, duration, and capture counters.
func (m *Metrics) SessionEnded(outcome string, elapsed time.Duration, samples int, dropped int64) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(elapsed.Seconds())
	m.CapturedSamples.Add(float64(samples))
	m.DroppedBlocks.Add(float64(dropped))
}

func (m *Metrics) RecordTranscription(backend string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TranscriptionsTotal.WithLabelValues(backend, status).Inc()
	m.TranscriptionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetLevel(level int) {
	if m == nil {
		return
	}
	m.InputLevel.Set(float64(level))
}
