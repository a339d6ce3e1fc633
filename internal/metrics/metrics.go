package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityinfo_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityinfo_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cityinfo_rate_limited_total",
			Help: "Total number of requests rejected by the per-client rate limiter",
		},
	)

	PageSizeClamped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cityinfo_page_size_clamped_total",
			Help: "Total number of list requests whose page size was reduced to the maximum",
		},
	)

	RepositoryQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityinfo_repository_queries_total",
			Help: "Total number of repository calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)
