package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kudosbot_http_requests_total",
			Help: "Total HTTP requests processed, by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kudosbot_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Strava API Metrics
var (
	StravaRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kudosbot_strava_requests_total",
			Help: "Authenticated Strava API requests, by HTTP status.",
		},
		[]string{"status"},
	)

	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kudosbot_token_refreshes_total",
			Help: "Strava access token refresh attempts, by result.",
		},
		[]string{"result"},
	)
)

// Pipeline Metrics
var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kudosbot_webhook_events_total",
			Help: "Webhook events received from Strava, by outcome.",
		},
		[]string{"outcome"},
	)

	ActivitiesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kudosbot_activities_relayed_total",
			Help: "Activity notifications delivered to Discord.",
		},
	)
)

// Label values for TokenRefreshesTotal and WebhookEventsTotal.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)
