package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	cperrors "github.com/codepage/codepage/pkg/errors"
)

// Options are handed to every sink factory.
type Options struct {
	// Path is the output file. File sinks swap its extension for their own
	// when it does not match, so one path serves several sinks.
	Path string

	// Writer receives console output and path-less JSONL.
	Writer io.Writer

	Redis RedisOptions
}

// RedisOptions configures the redis sink.
type RedisOptions struct {
	Address string
	Key     string
	TTL     time.Duration
	Timeout time.Duration
}

func (o Options) writer() io.Writer {
	if o.Writer == nil {
		return os.Stdout
	}
	return o.Writer
}

// pathFor returns the output path a file sink with extension ext should use.
func (o Options) pathFor(ext string) string {
	if o.Path == "" {
		return "codepage-report" + ext
	}
	cur := filepath.Ext(o.Path)
	if strings.EqualFold(cur, ext) {
		return o.Path
	}
	return strings.TrimSuffix(o.Path, cur) + ext
}

// Factory creates a sink.
type Factory func(opts Options) (Sink, error)

// Registry maps sink names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names returns registered sink names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the named sinks and combines them. On failure the sinks
// opened so far are closed.
func (r *Registry) Open(names []string, opts Options) (*Multi, error) {
	var sinks []Sink
	for _, name := range names {
		r.mu.RLock()
		f, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
		r.mu.RUnlock()
		if !ok {
			closeAll(sinks)
			return nil, cperrors.New(cperrors.CodeInvalidConfig, "unknown report sink").
				WithContext("sink", name).
				WithContext("available", r.Names())
		}
		s, err := f(opts)
		if err != nil {
			closeAll(sinks)
			return nil, cperrors.Wrap(err, cperrors.CodeReportFailed, fmt.Sprintf("open %s sink", name))
		}
		sinks = append(sinks, s)
	}
	return NewMulti(sinks...), nil
}

func closeAll(sinks []Sink) {
	for _, s := range sinks {
		_ = s.Close(context.Background())
	}
}

var defaultRegistry = NewRegistry()

func init() {
	defaultRegistry.Register("console", func(o Options) (Sink, error) { return NewConsoleSink(o.writer()), nil })
	defaultRegistry.Register("jsonl", func(o Options) (Sink, error) {
		if o.Path == "" || o.Path == "-" {
			return NewJSONLSink(o.writer()), nil
		}
		return CreateJSONLSink(o.pathFor(".jsonl"))
	})
	defaultRegistry.Register("parquet", func(o Options) (Sink, error) { return NewParquetSink(o.pathFor(".parquet")) })
	defaultRegistry.Register("xlsx", func(o Options) (Sink, error) { return NewXLSXSink(o.pathFor(".xlsx")), nil })
	defaultRegistry.Register("redis", func(o Options) (Sink, error) { return NewRedisSink(o.Redis) })
}

// Register adds a sink factory to the default registry.
func Register(name string, f Factory) { defaultRegistry.Register(name, f) }

// Names lists the default registry's sinks.
func Names() []string { return defaultRegistry.Names() }

// Open opens sinks from the default registry.
func Open(names []string, opts Options) (*Multi, error) { return defaultRegistry.Open(names, opts) }
