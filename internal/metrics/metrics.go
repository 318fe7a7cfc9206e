package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logredact_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logredact_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logredact_http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "endpoint"},
	)

	// Ingest metrics
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logredact_ingest_total",
			Help: "Total number of submissions by source and outcome",
		},
		[]string{"source", "status"}, // status: accepted, rejected, failed
	)

	IngestRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logredact_ingest_rejections_total",
			Help: "Total number of rejected submissions by reason",
		},
		[]string{"reason"},
	)

	// Buffer metrics
	BufferPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logredact_buffer_publish_total",
			Help: "Total number of envelopes written to the buffer",
		},
		[]string{"backend", "status"}, // status: success, failed
	)

	BufferPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logredact_buffer_publish_duration_seconds",
			Help:    "Time taken to write one envelope to the buffer",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"backend"},
	)

	BufferPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logredact_buffer_publish_retries_total",
			Help: "Total number of buffer publish retries",
		},
	)

	BufferDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logredact_buffer_deliveries_total",
			Help: "Total number of deliveries settled by the worker",
		},
		[]string{"backend", "outcome"}, // outcome: ack, release
	)

	// Worker metrics
	WorkerRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logredact_worker_records_total",
			Help: "Total number of records handled by workers",
		},
		[]string{"outcome", "state"}, // state: last state reached
	)

	WorkerAppliedDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logredact_worker_applied_delay_seconds",
			Help:    "Artificial processing delay applied per record",
			Buckets: []float64{0, .05, .25, .5, 1, 2.5, 5, 7.5, 10},
		},
	)

	WorkerRedactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logredact_worker_redactions_total",
			Help: "Sensitive matches replaced in persisted records",
		},
	)

	WorkerBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logredact_worker_batch_size",
			Help:    "Size of delivery batches received",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	WorkerInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logredact_worker_in_flight",
			Help: "Records currently being processed",
		},
	)

	// Store metrics
	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logredact_store_write_duration_seconds",
			Help:    "Time taken to upsert a processed record",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "status"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logredact_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
