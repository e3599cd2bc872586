package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for monitoring
var (
	DocumentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redactor_documents_processed_total",
		Help: "The total number of documents by terminal outcome",
	}, []string{"status"})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "redactor_jobs_in_flight",
		Help: "The number of redaction jobs currently occupying a scheduler slot",
	})

	DocumentProcessingTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "redactor_document_processing_seconds",
		Help:    "Time taken to drive one document to a terminal state",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10), // Start at 1s with 10 buckets doubling in size
	})

	FileRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_file_retries_total",
		Help: "The total number of whole-document restarts after unrecovered failures",
	})

	PollsExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_polls_total",
		Help: "The total number of status polls issued against the service",
	})

	JobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redactor_job_failures_total",
		Help: "Total number of job failures by error type, including ones later recovered by a file retry",
	}, []string{"error_type"})

	AdapterErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redactor_adapter_errors_total",
		Help: "Total number of input files rejected by an adapter",
	})
)
