package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MonitorTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_monitor_ticks_total",
		Help: "Total number of monitor ticks by outcome",
	}, []string{"monitor", "outcome"})

	MonitorTickLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notifier_monitor_tick_duration_seconds",
		Help:    "Duration of a single monitor tick",
		Buckets: prometheus.DefBuckets,
	}, []string{"monitor"})

	MonitorPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_monitor_panics_total",
		Help: "Total number of recovered panics inside monitor ticks",
	}, []string{"monitor"})

	NotificationsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_notifications_dispatched_total",
		Help: "Total number of notification deliveries by type, channel and result",
	}, []string{"type", "channel", "result"})

	BackendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_backend_requests_total",
		Help: "Total number of backend API requests",
	}, []string{"endpoint", "status"})

	BackendRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "notifier_backend_request_duration_seconds",
		Help:    "Backend API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	LifecycleTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifier_lifecycle_transitions_total",
		Help: "Total number of application lifecycle transitions observed",
	}, []string{"state"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
