package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesPosted    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "rides_posted_total", Help: "Total rides posted"})
	Interests      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "interests_total", Help: "Total interests expressed"})
	Confirmations  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "confirmations_total", Help: "Total interests confirmed"})
	Rejections     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "rejections_total", Help: "Total interests rejected"})
	RidesDeleted   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "rides_deleted_total", Help: "Total rides deleted by posters"})
	RidesExpired   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "rides_expired_total", Help: "Total rides removed by the expiry sweep"})
	RemindersSent  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "reminders_sent_total", Help: "Total confirmation reminders sent"})
	SweepFailures  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "sweep_failures_total", Help: "Total sweep ticks that errored"})

	NotificationsSent    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "notifications_sent_total", Help: "Total notifications delivered"})
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "rideshare", Name: "notification_failures_total", Help: "Total notification delivery failures"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rideshare", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rideshare",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
