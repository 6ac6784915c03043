// Package interfaces defines the pluggable contracts shared across codepage.
package interfaces

import "time"

// MetricsExporter exports metrics to a monitoring backend.
type MetricsExporter interface {
	// Counter increments a counter metric.
	Counter(name string, value int64, tags map[string]string)

	// Gauge sets a gauge metric to the specified value.
	Gauge(name string, value float64, tags map[string]string)

	// Histogram records a value in a histogram.
	Histogram(name string, value float64, tags map[string]string)

	// Timer records a duration.
	Timer(name string, duration time.Duration, tags map[string]string)

	// Flush sends any buffered metrics to the backend.
	Flush() error

	// Close releases resources.
	Close() error
}

// Common metric names used throughout the system.
const (
	// Resolver metrics
	MetricResolveTotal     = "codepage.resolve.total"
	MetricResolveFallbacks = "codepage.resolve.fallbacks"
	MetricResolveErrors    = "codepage.resolve.errors"
	MetricResolveDuration  = "codepage.resolve.duration"

	// Detector metrics
	MetricDetectHits = "codepage.detect.hits"

	// Scan metrics
	MetricScanFiles    = "codepage.scan.files"
	MetricScanDuration = "codepage.scan.duration"

	// Report metrics
	MetricReportRecords = "codepage.report.records"
	MetricReportErrors  = "codepage.report.errors"
)

// Common tag names.
const (
	TagDetector = "detector"
	TagEncoding = "encoding"
	TagMode     = "mode"
	TagCode     = "code"
	TagSink     = "sink"
)
