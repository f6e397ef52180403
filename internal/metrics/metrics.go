package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basement_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basement_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Ingest metrics
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basement_readings_total",
			Help: "Total number of readings received",
		},
		[]string{"source", "status"}, // status: stored, rejected, failed
	)

	AlertTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basement_alert_transitions_total",
			Help: "Alert state machine actions taken",
		},
		[]string{"reading_type", "action"},
	)

	AlertErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basement_alert_errors_total",
			Help: "Alert processing failures by kind",
		},
		[]string{"reading_type", "kind"}, // kind: ledger, consistency, notification
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "basement_notifications_total",
			Help: "Notifications dispatched per channel",
		},
		[]string{"channel", "status"}, // status: sent, failed
	)

	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "basement_notification_duration_seconds",
			Help:    "Time taken to deliver a notification",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)
)
