package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "folio_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// IngestTotal counts finished imports by source type and result.
	IngestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_ingest_total",
		Help: "Books imported, by source type and result",
	}, []string{"source_type", "result"})

	PagesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_pages_written_total",
		Help: "Page files written by splitting",
	})
)
