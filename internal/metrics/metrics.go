// Package metrics provides Prometheus metrics for CognifyX.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "cognifyx"
)

// Pipeline metrics
var (
	// CyclesTotal counts completed fusion cycles.
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cycles_total",
			Help:      "Total fusion cycles completed",
		},
	)

	// VerdictsTotal counts verdicts by threat level.
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "verdicts_total",
			Help:      "Total verdicts by threat level",
		},
		[]string{"level"},
	)

	// FramesDroppedTotal counts frames dropped because fusion fell behind.
	FramesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "frames_dropped_total",
			Help:      "Total vision frames dropped on a full queue",
		},
	)

	// FrameErrorsTotal counts failed frame reads.
	FrameErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "frame_errors_total",
			Help:      "Total vision source errors",
		},
	)

	// SensorErrorsTotal counts failed sensor reads.
	SensorErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "sensor_errors_total",
			Help:      "Total sensor read errors",
		},
	)

	// GasLevel tracks the most recent gas level (0-100).
	GasLevel = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "gas_level",
			Help:      "Most recent normalized gas level",
		},
	)
)

// Alert metrics
var (
	// AlertsDispatchedTotal counts persisted alert events.
	AlertsDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "dispatched_total",
			Help:      "Total alert events persisted",
		},
	)

	// AlertsSuppressedTotal counts pending alerts suppressed by the cooldown.
	AlertsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Total alerts suppressed by the cooldown",
		},
	)

	// DispatchErrorsTotal counts failed alert persists.
	DispatchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "dispatch_errors_total",
			Help:      "Total alert events that failed to persist",
		},
	)

	// MirrorPublishedTotal counts events forwarded to mirrors.
	MirrorPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "published_total",
			Help:      "Total alert events forwarded to mirrors",
		},
	)

	// MirrorErrorsTotal counts failed mirror forwards.
	MirrorErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "errors_total",
			Help:      "Total failed mirror forwards",
		},
	)

	// NotificationsTotal counts notifier sends by notifier and result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "notifications_total",
			Help:      "Total notifier sends by notifier and result",
		},
		[]string{"notifier", "result"}, // sent, failed, rate_limited
	)
)

// Dashboard metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// DashboardEventsTotal counts alert events pushed to stream subscribers.
	DashboardEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "events_total",
			Help:      "Total alert events broadcast to stream subscribers",
		},
	)

	// DashboardSubscribers tracks connected stream clients.
	DashboardSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "subscribers",
			Help:      "Number of connected stream subscribers",
		},
	)

	// DashboardReloadsTotal counts log re-reads by result.
	DashboardReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "reloads_total",
			Help:      "Total alert log reloads by result",
		},
		[]string{"result"}, // ok, malformed, error
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
