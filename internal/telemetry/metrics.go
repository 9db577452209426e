// Package telemetry exposes prometheus metrics and optional OpenTelemetry
// tracing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "focusflow_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	SamplesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "focusflow_gaze_samples_accepted_total",
			Help: "Gaze samples committed to a session",
		},
	)

	SamplesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "focusflow_gaze_samples_dropped_total",
			Help: "Gaze samples dropped as out of order",
		},
	)

	FocusEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusflow_focus_events_total",
			Help: "Focus events emitted, by type",
		},
		[]string{"type"},
	)

	ModeSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusflow_mode_switches_total",
			Help: "Automatic reading-mode switches, by target mode",
		},
		[]string{"mode"},
	)

	WorkingSet = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusflow_working_set_sessions",
			Help: "Sessions held in the in-memory working set",
		},
	)

	Replays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "focusflow_session_replays_total",
			Help: "Session states rebuilt from the durable store",
		},
	)
)
