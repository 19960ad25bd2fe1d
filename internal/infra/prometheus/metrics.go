package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Application metrics, registered on the default registry served by NewServer.
var (
	SharesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudshare_shares_created_total",
		Help: "Shares created, by record type.",
	}, []string{"type"})

	Resolves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudshare_resolves_total",
		Help: "Content resolve attempts, by outcome.",
	}, []string{"outcome"})

	UpstreamFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudshare_subscription_upstream_failures_total",
		Help: "Subscription proxy fetches that failed.",
	})

	MetaCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudshare_meta_cache_hits_total",
		Help: "Metadata cache hits.",
	})

	MetaCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudshare_meta_cache_misses_total",
		Help: "Metadata cache misses.",
	})

	RecordsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudshare_records_swept_total",
		Help: "Expired records removed by the background sweeper.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cloudshare_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
