// Package metrics provides Prometheus instrumentation for ingestion runs.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewCollector(reg)
//
//	timer := metrics.NewTimer()
//	path, err := transformer.Transform(ctx, rc)
//	c.ObserveRun("json", "parquet", metrics.Status(err), timer.Stop())
//
// Collectors are registered on the Registerer passed in, never on the global
// default registry, so tests and concurrent runs can each use their own.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ingest"

// Run outcomes used as the status label
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Collector holds the ingestion metrics. All methods are safe for concurrent
// use and a nil *Collector is a valid no-op.
type Collector struct {
	runs          *prometheus.CounterVec   // Completed runs by outcome
	records       *prometheus.CounterVec   // Records through each stage
	skippedLines  prometheus.Counter       // Log lines the block parser rejected
	stageDuration *prometheus.HistogramVec // Per-stage latency
	runDuration   *prometheus.HistogramVec // End-to-end latency
	bytesFetched  prometheus.Counter       // Raw bytes pulled from object storage
}

// NewCollector creates and registers the ingestion metrics on reg.
// A nil reg creates unregistered metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of ingestion runs",
			},
			[]string{"file_type", "output_format", "status"},
		),
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Total number of records seen by each pipeline stage",
			},
			[]string{"stage", "file_type"},
		),
		skippedLines: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_lines_skipped_total",
				Help:      "Log lines that did not match the record pattern",
			},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds",
				Buckets: []float64{
					0.001, // 1ms - small decodes
					0.01,  // 10ms
					0.1,   // 100ms
					1,     // 1s - typical parquet encode
					10,    // 10s - large workbooks
					60,    // 1m - warehouse loads
				},
			},
			[]string{"stage"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "End-to-end duration of ingestion runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"file_type", "output_format"},
		),
		bytesFetched: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetched_bytes_total",
				Help:      "Bytes fetched from object storage before decompression",
			},
		),
	}
}

// Status maps an error to the status label
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// ObserveRun records one finished run
func (c *Collector) ObserveRun(fileType, outputFormat, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(fileType, outputFormat, status).Inc()
	c.runDuration.WithLabelValues(fileType, outputFormat).Observe(d.Seconds())
}

// ObserveStage records the latency of one pipeline stage
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// AddRecords counts n records passing through stage
func (c *Collector) AddRecords(stage, fileType string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.records.WithLabelValues(stage, fileType).Add(float64(n))
}

// AddSkippedLines counts log lines rejected by the block parser
func (c *Collector) AddSkippedLines(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.skippedLines.Add(float64(n))
}

// AddBytesFetched counts raw bytes pulled from object storage
func (c *Collector) AddBytesFetched(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.bytesFetched.Add(float64(n))
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since the timer started. It can be called
// more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// WriteTextfile gathers g and writes it in the Prometheus text format to path,
// for collection by the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
