// Package metrics exposes Prometheus instrumentation for the HTTP API,
// notification delivery and scheduled digests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification outcomes.
const (
	OutcomeSent     = "sent"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

var (
	// HTTPRequestsTotal counts API requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onefam_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onefam_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// NotificationsTotal counts digest mails by delivery outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onefam_notifications_total",
			Help: "Total number of notification deliveries by outcome",
		},
		[]string{"outcome"},
	)

	// NotificationsInFlight is the number of queued sends not yet finished.
	NotificationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onefam_notifications_in_flight",
			Help: "Number of notification sends currently in progress",
		},
	)

	// ScheduledDigestsTotal counts scheduled digest runs per subscription.
	ScheduledDigestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onefam_scheduled_digests_total",
			Help: "Total number of scheduled digest runs by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordRequest records one finished HTTP request.
func RecordRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordNotification records the outcome of one delivery attempt.
func RecordNotification(ok bool) {
	if ok {
		NotificationsTotal.WithLabelValues(OutcomeSent).Inc()
		return
	}
	NotificationsTotal.WithLabelValues(OutcomeRejected).Inc()
}

// RecordScheduledDigest records one scheduled run for a subscription.
func RecordScheduledDigest(err error) {
	if err != nil {
		ScheduledDigestsTotal.WithLabelValues(OutcomeFailed).Inc()
		return
	}
	ScheduledDigestsTotal.WithLabelValues(OutcomeSent).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
