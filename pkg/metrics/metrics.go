package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Dataset Metrics
	DatasetLoadDuration   *prometheus.HistogramVec
	DatasetRecordsLoaded  *prometheus.GaugeVec
	DatasetCacheRequests  *prometheus.CounterVec
	DatasetUnavailable    *prometheus.CounterVec
	IngestionErrorsTotal  *prometheus.CounterVec
	IngestionRecordsTotal prometheus.Counter
	IngestionBatchSize    prometheus.Histogram

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec

	// Analysis Metrics
	AnalysisDuration   *prometheus.HistogramVec
	PredictionsTotal   *prometheus.CounterVec
	ActiveLocations    prometheus.Gauge
	ActiveTransformers prometheus.Gauge
	OverloadedAnalyses *prometheus.CounterVec
}

// builder registers every collector under one namespace
type builder struct {
	factory   promauto.Factory
	namespace string
}

func (b builder) counter(name, help string) prometheus.Counter {
	return b.factory.NewCounter(prometheus.CounterOpts{Namespace: b.namespace, Name: name, Help: help})
}

func (b builder) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return b.factory.NewCounterVec(prometheus.CounterOpts{Namespace: b.namespace, Name: name, Help: help}, labels)
}

func (b builder) gauge(name, help string) prometheus.Gauge {
	return b.factory.NewGauge(prometheus.GaugeOpts{Namespace: b.namespace, Name: name, Help: help})
}

func (b builder) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return b.factory.NewGaugeVec(prometheus.GaugeOpts{Namespace: b.namespace, Name: name, Help: help}, labels)
}

func (b builder) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return b.factory.NewHistogram(prometheus.HistogramOpts{Namespace: b.namespace, Name: name, Help: help, Buckets: buckets})
}

func (b builder) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return b.factory.NewHistogramVec(prometheus.HistogramOpts{Namespace: b.namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

// Latency buckets in seconds
var (
	requestBuckets = []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10}
	queryBuckets   = []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 5}
	loadBuckets    = []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120}
	batchBuckets   = prometheus.ExponentialBuckets(10, 5, 6)
)

// NewCollector creates a new metrics collector registered against reg.
// A nil reg registers against the Prometheus default registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	b := builder{factory: promauto.With(reg), namespace: namespace}

	return &Collector{
		APIRequestsTotal: b.counterVec("api_requests_total",
			"Total number of API requests by endpoint, method, and status", "endpoint", "method", "status"),
		APIRequestDuration: b.histogramVec("api_request_duration_seconds",
			"API request duration in seconds", requestBuckets, "endpoint"),
		APIErrorsTotal: b.counterVec("api_errors_total",
			"Total number of API errors by type", "error_type", "endpoint"),

		DatasetLoadDuration: b.histogramVec("dataset_load_duration_seconds",
			"Duration of full dataset loads by dataset", loadBuckets, "dataset"),
		DatasetRecordsLoaded: b.gaugeVec("dataset_records_loaded",
			"Number of records held in the in-memory dataset", "dataset"),
		DatasetCacheRequests: b.counterVec("dataset_cache_requests_total",
			"Dataset cache lookups by result (hit, miss)", "dataset", "result"),
		DatasetUnavailable: b.counterVec("dataset_unavailable_total",
			"Number of dataset loads that failed and degraded to an empty set", "dataset"),
		IngestionErrorsTotal: b.counterVec("ingestion_errors_total",
			"Total number of skipped source rows by error type", "error_type"),
		IngestionRecordsTotal: b.counter("ingestion_records_processed_total",
			"Total number of energy records written by the ingester"),
		IngestionBatchSize: b.histogram("ingestion_batch_size",
			"Number of records per batch during ingestion", batchBuckets),

		DBQueryDuration: b.histogramVec("db_query_duration_seconds",
			"Database query duration in seconds by query type", queryBuckets, "query_type"),
		DBConnectionPool: b.gaugeVec("db_connection_pool",
			"Database connection pool statistics (in_use, idle, total)", "state"),
		DBErrorsTotal: b.counterVec("db_errors_total",
			"Total number of database errors by type", "error_type"),

		AnalysisDuration: b.histogramVec("analysis_duration_seconds",
			"Duration of analysis operations by operation", requestBuckets, "operation"),
		PredictionsTotal: b.counterVec("charger_predictions_total",
			"Charger presence predictions by outcome (present, absent)", "outcome"),
		ActiveLocations: b.gauge("active_locations",
			"Active locations found by the most recent location listing"),
		ActiveTransformers: b.gauge("active_transformers",
			"Active transformers found by the most recent transformer listing"),
		OverloadedAnalyses: b.counterVec("transformer_analyses_total",
			"Transformer weekly analyses by load rate category", "category"),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// TimeAnalysis starts a timer for the named analysis operation
func (c *Collector) TimeAnalysis(operation string) *Timer {
	return c.NewTimer(c.AnalysisDuration.WithLabelValues(operation))
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordIngestionError increments the skipped-row counter
func (c *Collector) RecordIngestionError(errorType string) {
	c.IngestionErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordCacheLookup counts a dataset cache hit or miss
func (c *Collector) RecordCacheLookup(dataset string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.DatasetCacheRequests.WithLabelValues(dataset, result).Inc()
}

// RecordPrediction counts a charger presence prediction outcome
func (c *Collector) RecordPrediction(hasChargers bool) {
	outcome := "absent"
	if hasChargers {
		outcome = "present"
	}
	c.PredictionsTotal.WithLabelValues(outcome).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
