package metrics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/codepage/codepage/pkg/interfaces"
)

// LogMetrics writes metrics as structured log records.
// Useful for debugging and development.
type LogMetrics struct {
	mu         sync.Mutex
	logger     *slog.Logger
	level      slog.Level
	minLevel   LogLevel
	buffer     []slog.Record
	bufferSize int
}

// LogLevel controls which metrics are logged.
type LogLevel int

const (
	LogLevelAll LogLevel = iota
	LogLevelTimers
	LogLevelNone
)

// LogMetricsOption configures LogMetrics.
type LogMetricsOption func(*LogMetrics)

// WithLogger sets the destination logger.
func WithLogger(logger *slog.Logger) LogMetricsOption {
	return func(m *LogMetrics) {
		m.logger = logger
	}
}

// WithLevel sets the slog level metric records are written at.
func WithLevel(level slog.Level) LogMetricsOption {
	return func(m *LogMetrics) {
		m.level = level
	}
}

// WithMinLevel sets the minimum metric kind that is logged.
func WithMinLevel(level LogLevel) LogMetricsOption {
	return func(m *LogMetrics) {
		m.minLevel = level
	}
}

// WithBufferSize sets the buffer size for batched logging.
func WithBufferSize(size int) LogMetricsOption {
	return func(m *LogMetrics) {
		m.bufferSize = size
	}
}

// NewLogMetrics creates a new log-based metrics exporter.
func NewLogMetrics(opts ...LogMetricsOption) *LogMetrics {
	m := &LogMetrics{
		logger:   slog.Default(),
		level:    slog.LevelDebug,
		minLevel: LogLevelAll,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *LogMetrics) Counter(name string, value int64, tags map[string]string) {
	if m.minLevel >= LogLevelTimers {
		return
	}
	m.log("counter", name, slog.Int64("value", value), tags)
}

func (m *LogMetrics) Gauge(name string, value float64, tags map[string]string) {
	if m.minLevel >= LogLevelTimers {
		return
	}
	m.log("gauge", name, slog.Float64("value", value), tags)
}

func (m *LogMetrics) Histogram(name string, value float64, tags map[string]string) {
	if m.minLevel >= LogLevelTimers {
		return
	}
	m.log("histogram", name, slog.Float64("value", value), tags)
}

func (m *LogMetrics) Timer(name string, duration time.Duration, tags map[string]string) {
	if m.minLevel >= LogLevelNone {
		return
	}
	m.log("timer", name, slog.Duration("value", duration), tags)
}

// Flush outputs any buffered metrics.
func (m *LogMetrics) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
	return nil
}

// Close flushes and closes the exporter.
func (m *LogMetrics) Close() error {
	return m.Flush()
}

func (m *LogMetrics) log(kind, name string, value slog.Attr, tags map[string]string) {
	ctx := context.Background()
	if !m.logger.Enabled(ctx, m.level) {
		return
	}

	r := slog.NewRecord(time.Now(), m.level, "metric", 0)
	r.AddAttrs(slog.String("type", kind), slog.String("name", name), value)
	if len(tags) > 0 {
		r.AddAttrs(slog.Attr{Key: "tags", Value: tagAttrs(tags)})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bufferSize <= 0 {
		_ = m.logger.Handler().Handle(ctx, r)
		return
	}
	m.buffer = append(m.buffer, r)
	if len(m.buffer) >= m.bufferSize {
		m.flushLocked()
	}
}

func (m *LogMetrics) flushLocked() {
	for _, r := range m.buffer {
		_ = m.logger.Handler().Handle(context.Background(), r)
	}
	m.buffer = nil
}

// tagAttrs renders tags as a group with sorted keys for consistent output.
func tagAttrs(tags map[string]string) slog.Value {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, len(keys))
	for i, k := range keys {
		attrs[i] = slog.String(k, tags[k])
	}
	return slog.GroupValue(attrs...)
}

// Verify interface compliance.
var _ interfaces.MetricsExporter = (*LogMetrics)(nil)
