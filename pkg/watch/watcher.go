// Package watch re-resolves files when they change on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codepage/codepage/pkg/report"
)

// DefaultDebounce coalesces bursts of writes to one resolution.
const DefaultDebounce = 500 * time.Millisecond

// FileResolver resolves one file into a report record. *scan.Scanner
// implements it.
type FileResolver interface {
	ResolveFile(ctx context.Context, path string) report.Record
}

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration

	// Initial reports every watched file once when Run starts.
	Initial bool

	Logger *slog.Logger
}

// Watcher monitors files and reports a fresh record after each change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	resolver FileResolver
	sink     report.Sink
	debounce time.Duration
	initial  bool
	logger   *slog.Logger

	mu      sync.Mutex
	files   map[string]*fileState
	ctx     context.Context
	stopped bool
	wg      sync.WaitGroup
}

type fileState struct {
	lastModified time.Time
	size         int64
	encoding     string
	timer        *time.Timer
	processing   bool
	dirty        bool
}

// New creates a watcher that writes each result to sink.
func New(resolver FileResolver, sink report.Sink, opts Options) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{
		watcher:  fsWatcher,
		resolver: resolver,
		sink:     sink,
		debounce: opts.Debounce,
		initial:  opts.Initial,
		logger:   opts.Logger,
		files:    make(map[string]*fileState),
	}, nil
}

// Watch adds a file. Its directory is watched so that editors which replace
// the file on save are still seen.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	stat, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		return fmt.Errorf("not a file: %s", path)
	}

	w.mu.Lock()
	w.files[absPath] = &fileState{
		lastModified: stat.ModTime(),
		size:         stat.Size(),
	}
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	return nil
}

// Files returns the watched absolute paths, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Run processes events until ctx is done. Pending resolutions finish
// before Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	defer func() {
		w.stopTimers()
		w.wg.Wait()
	}()

	if w.initial {
		for _, path := range w.Files() {
			w.report(ctx, path)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			w.schedule(absPath)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// schedule (re)starts the debounce timer for a watched path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.files[path]
	if !ok {
		return
	}
	if state.timer != nil {
		state.timer.Stop()
	}
	state.timer = time.AfterFunc(w.debounce, func() { w.handleChange(path) })
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for _, state := range w.files {
		if state.timer != nil {
			state.timer.Stop()
		}
	}
}

func (w *Watcher) handleChange(path string) {
	w.mu.Lock()
	state := w.files[path]
	ctx := w.ctx
	if state == nil || ctx == nil || w.stopped || ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	if state.processing {
		state.dirty = true
		w.mu.Unlock()
		return
	}
	state.processing = true
	w.wg.Add(1)
	w.mu.Unlock()

	defer w.wg.Done()
	for {
		w.checkAndReport(ctx, path, state)

		w.mu.Lock()
		if !state.dirty || ctx.Err() != nil {
			state.processing = false
			state.dirty = false
			w.mu.Unlock()
			return
		}
		state.dirty = false
		w.mu.Unlock()
	}
}

// checkAndReport resolves path when its size or mtime moved.
func (w *Watcher) checkAndReport(ctx context.Context, path string, state *fileState) {
	stat, err := os.Stat(path)
	if err != nil {
		w.logger.Warn("watched file unavailable", "path", path, "error", err)
		return
	}

	w.mu.Lock()
	unchanged := stat.ModTime().Equal(state.lastModified) && stat.Size() == state.size
	if !unchanged {
		state.lastModified = stat.ModTime()
		state.size = stat.Size()
	}
	w.mu.Unlock()

	if unchanged {
		return
	}
	w.report(ctx, path)
}

func (w *Watcher) report(ctx context.Context, path string) {
	rec := w.resolver.ResolveFile(ctx, path)

	w.mu.Lock()
	var previous string
	if state, ok := w.files[path]; ok {
		previous = state.encoding
		state.encoding = rec.FileEncoding
	}
	w.mu.Unlock()

	if previous != "" && previous != rec.FileEncoding {
		w.logger.Info("encoding changed", "path", path, "from", previous, "to", rec.FileEncoding)
	}
	if w.sink == nil {
		return
	}
	if err := w.sink.Write(ctx, rec); err != nil {
		w.logger.Warn("report failed", "path", path, "sink", w.sink.Name(), "error", err)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
