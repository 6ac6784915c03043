package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codepage/codepage/pkg/interfaces"
)

// MemoryMetrics keeps counters and timer totals in memory. The scan command
// uses it for its summary line.
type MemoryMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
	timers   map[string]time.Duration
}

// NewMemoryMetrics creates an empty in-memory exporter.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timers:   make(map[string]time.Duration),
	}
}

func (m *MemoryMetrics) Counter(name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[Key(name, tags)] += value
}

func (m *MemoryMetrics) Gauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[Key(name, tags)] = value
}

// Histogram keeps the last observed value.
func (m *MemoryMetrics) Histogram(name string, value float64, tags map[string]string) {
	m.Gauge(name, value, tags)
}

func (m *MemoryMetrics) Timer(name string, duration time.Duration, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[Key(name, tags)] += duration
}

func (m *MemoryMetrics) Flush() error { return nil }
func (m *MemoryMetrics) Close() error { return nil }

// CounterValue returns the accumulated value of a counter.
func (m *MemoryMetrics) CounterValue(name string, tags map[string]string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[Key(name, tags)]
}

// TimerTotal returns the accumulated duration of a timer.
func (m *MemoryMetrics) TimerTotal(name string, tags map[string]string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timers[Key(name, tags)]
}

// Key builds the series key "name{k=v,...}" with sorted tags.
func Key(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(tags[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

// Verify interface compliance.
var _ interfaces.MetricsExporter = (*MemoryMetrics)(nil)
