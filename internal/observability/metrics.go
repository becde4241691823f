package observability

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricIngestRuns     = "ingest_runs_total"
	MetricIngestTriples  = "ingest_triples_total"
	MetricIngestBatches  = "ingest_batches_total"
	MetricBatchDuration  = "ingest_batch_duration_seconds"
	MetricHTTPRequests   = "http_requests_total"
	MetricCatalogRecords = "catalog_records_created_total"
)

// CounterIngestRuns counts completed ingestion runs by outcome
// ("ok", "partial", "failed").
var CounterIngestRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ontomart",
		Name:      MetricIngestRuns,
		Help:      "Completed ingestion runs by outcome.",
	},
	[]string{"status"},
)

// CounterIngestTriples counts parsed triples by classification
// ("relational", "literal").
var CounterIngestTriples = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ontomart",
		Name:      MetricIngestTriples,
		Help:      "Parsed triples by classification.",
	},
	[]string{"kind"},
)

// CounterIngestBatches counts executed predicate batches by kind and outcome.
var CounterIngestBatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ontomart",
		Name:      MetricIngestBatches,
		Help:      "Executed predicate batches by kind and outcome.",
	},
	[]string{"kind", "status"},
)

// HistogramBatchDuration observes wall time per predicate batch.
var HistogramBatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "ontomart",
		Name:      MetricBatchDuration,
		Help:      "Wall time of one predicate batch round-trip.",
		Buckets:   prometheus.DefBuckets,
	},
)

// CounterHTTPRequests counts API requests by method, route and status code.
var CounterHTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ontomart",
		Name:      MetricHTTPRequests,
		Help:      "API requests by method, route and status code.",
	},
	[]string{"method", "route", "code"},
)

// CounterCatalogRecords counts catalog records created.
var CounterCatalogRecords = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "ontomart",
		Name:      MetricCatalogRecords,
		Help:      "Catalog records created.",
	},
)

func init() {
	prometheus.MustRegister(CounterIngestRuns)
	prometheus.MustRegister(CounterIngestTriples)
	prometheus.MustRegister(CounterIngestBatches)
	prometheus.MustRegister(HistogramBatchDuration)
	prometheus.MustRegister(CounterHTTPRequests)
	prometheus.MustRegister(CounterCatalogRecords)
}
