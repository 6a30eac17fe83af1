// Package metrics provides Prometheus metrics for the assistant service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ytassistant"

var (
	// TranscriptCacheTotal tracks transcript cache lookups.
	// Labels:
	//   - status: hit, miss, shared
	TranscriptCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_cache_total",
			Help:      "Total number of transcript cache lookups",
		},
		[]string{"status"},
	)

	// TranscriptCacheEntries is the number of cached transcripts.
	TranscriptCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcript_cache_entries",
			Help:      "Number of transcripts held in memory",
		},
	)

	// UpstreamRequestsTotal tracks calls to external services.
	// Labels:
	//   - upstream: transcript, completion
	//   - status: success, error, rejected
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream requests",
		},
		[]string{"upstream", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream request latency in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"upstream"},
	)

	// HTTPRequestsTotal tracks inbound requests by matched route.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// ExchangesRecordedTotal tracks exchange log writes.
	// Labels:
	//   - sink: db, queue
	//   - status: success, error
	ExchangesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_recorded_total",
			Help:      "Total number of exchange log writes",
		},
		[]string{"sink", "status"},
	)
)

// Cache status constants.
const (
	CacheStatusHit    = "hit"
	CacheStatusMiss   = "miss"
	CacheStatusShared = "shared"
)

// Upstream constants.
const (
	UpstreamTranscript = "transcript"
	UpstreamCompletion = "completion"
)

// Status constants.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
)

// Exchange sink constants.
const (
	SinkDB    = "db"
	SinkQueue = "queue"
)
