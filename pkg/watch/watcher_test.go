package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/codepage/codepage/pkg/report"
)

type fakeResolver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeResolver) ResolveFile(ctx context.Context, path string) report.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[path]++
	data, _ := os.ReadFile(path)
	enc := "US-ASCII"
	for _, b := range data {
		if b >= 0x80 {
			enc = "UTF-8"
			break
		}
	}
	return report.Record{Path: path, FileEncoding: enc}
}

type chanSink struct{ ch chan report.Record }

func (c chanSink) Name() string { return "chan" }
func (c chanSink) Write(ctx context.Context, rec report.Record) error {
	c.ch <- rec
	return nil
}
func (c chanSink) Close(ctx context.Context) error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func next(t *testing.T, ch <-chan report.Record) report.Record {
	t.Helper()
	select {
	case rec := <-ch:
		return rec
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for record")
		return report.Record{}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink := chanSink{ch: make(chan report.Record, 8)}
	w, err := New(&fakeResolver{}, sink, Options{Debounce: 100 * time.Millisecond, Initial: true, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(path); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	rec := next(t, sink.ch)
	if rec.FileEncoding != "US-ASCII" {
		t.Errorf("Expected initial US-ASCII, got %s", rec.FileEncoding)
	}

	// Give the watcher a moment, then write non-ASCII content.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("caf\xC3\xA9 au lait"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec = next(t, sink.ch)
	if rec.FileEncoding != "UTF-8" {
		t.Errorf("Expected UTF-8 after change, got %s", rec.FileEncoding)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_IgnoresUnwatchedFiles(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "a.txt")
	other := filepath.Join(dir, "b.txt")
	for _, p := range []string{watched, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	sink := chanSink{ch: make(chan report.Record, 8)}
	res := &fakeResolver{}
	w, err := New(res, sink, Options{Debounce: 10 * time.Millisecond, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(watched); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(other, []byte("changed"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	select {
	case rec := <-sink.ch:
		t.Errorf("Expected no record, got %+v", rec)
	default:
	}
	res.mu.Lock()
	defer res.mu.Unlock()
	if res.calls[other] != 0 {
		t.Errorf("Expected unwatched file not to be resolved, got %d calls", res.calls[other])
	}
}

func TestWatcher_WatchErrors(t *testing.T) {
	w, err := New(&fakeResolver{}, nil, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
	if err := w.Watch(t.TempDir()); err == nil {
		t.Error("Expected error for directory")
	}
	if len(w.Files()) != 0 {
		t.Errorf("Expected no watched files, got %v", w.Files())
	}
}
