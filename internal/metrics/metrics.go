package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks the latency of bounty service operations
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bounty_operation_duration_seconds",
			Help: "Duration of bounty service operations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
			},
		},
		[]string{"operation", "outcome"},
	)

	// SubmissionsTotal counts entry writes by kind
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_submissions_total",
			Help: "Submission writes by result",
		},
		[]string{"result"}, // created, updated or rejected
	)

	// AnnouncementsTotal counts winner announcement attempts by outcome
	AnnouncementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_announcements_total",
			Help: "Winner announcement attempts by outcome",
		},
		[]string{"outcome"},
	)

	// HTTPRequestDuration tracks API latency per route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bounty_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// LiveSubscribers is the number of connected live feed clients
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bounty_live_subscribers",
			Help: "Connected live feed subscribers",
		},
	)

	// BountiesEnded counts deadline transitions observed by the watcher
	BountiesEnded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bounty_ended_total",
			Help: "Bounties observed crossing their deadline",
		},
	)
)

// RecordOperation records the duration of a service operation
func RecordOperation(operation, outcome string, duration float64) {
	OperationDuration.WithLabelValues(operation, outcome).Observe(duration)
}

// RecordSubmission counts a submission write
func RecordSubmission(result string) {
	SubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordAnnouncement counts an announcement attempt
func RecordAnnouncement(outcome string) {
	AnnouncementsTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records the duration of an HTTP request
func RecordHTTPRequest(method, route, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration)
}
