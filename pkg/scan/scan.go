// Package scan resolves the encoding of every file under a set of roots.
//
// Each file is resolved twice, once through its path (the addressable path,
// where detectors may read as much as they need) and once as a stream sample
// of SampleSize leading bytes. Results are emitted in sorted path order
// regardless of which worker finished first.
package scan

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codepage/codepage/pkg/config"
	"github.com/codepage/codepage/pkg/defaults/metrics"
	"github.com/codepage/codepage/pkg/ingest/sources"
	"github.com/codepage/codepage/pkg/interfaces"
	"github.com/codepage/codepage/pkg/report"
	"github.com/codepage/codepage/pkg/resolve"
	"github.com/codepage/codepage/pkg/tui"
)

// Options configures a Scanner.
type Options struct {
	Workers    int // 0 = runtime.NumCPU()
	Walk       sources.WalkOptions
	SampleSize int // stream sample; negative = sources.DefaultSampleSize
	SkipStream bool

	// Progress, when set, receives a progress bar.
	Progress io.Writer

	Logger  *slog.Logger
	Metrics interfaces.MetricsExporter
}

// OptionsFromConfig maps the scan and detection sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers: cfg.Scan.Workers,
		Walk: sources.WalkOptions{
			Include:        cfg.Scan.Include,
			Exclude:        cfg.Scan.Exclude,
			FollowSymlinks: cfg.Scan.FollowSymlinks,
		},
		SampleSize: cfg.Detection.SampleSize,
	}
}

// Summary totals a scan.
type Summary struct {
	Files     int64
	Fallbacks int64
	Errors    int64
	Bytes     int64
	Duration  time.Duration
}

// Scanner walks roots and resolves each file with a shared Resolver.
type Scanner struct {
	resolver *resolve.Resolver
	opts     Options
	logger   *slog.Logger
	metrics  interfaces.MetricsExporter
}

// New creates a scanner.
func New(r *resolve.Resolver, opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	s := &Scanner{
		resolver: r,
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoopMetrics()
	}
	return s
}

// Files lists the files the scan would visit, deduplicated and sorted.
func (s *Scanner) Files(ctx context.Context, roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, root := range roots {
		found, err := sources.Walk(ctx, root, s.opts.Walk)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return files, nil
}

// Scan resolves every file under roots and writes one record per file to
// sink in path order. Per-file failures become records with Error set; only
// walk failures, cancellation and sink failures abort the scan.
func (s *Scanner) Scan(ctx context.Context, roots []string, sink report.Sink) (Summary, error) {
	start := time.Now()

	files, err := s.Files(ctx, roots)
	if err != nil {
		return Summary{}, err
	}
	s.logger.Debug("scan started", "roots", roots, "files", len(files), "workers", s.opts.Workers)

	records, err := s.resolveAll(ctx, files)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, rec := range records {
		sum.Files++
		if rec.Fallback {
			sum.Fallbacks++
		}
		if rec.Error != "" {
			sum.Errors++
		}
		if rec.Size > 0 {
			sum.Bytes += rec.Size
		}
		if sink == nil {
			continue
		}
		if err := sink.Write(ctx, rec); err != nil {
			s.metrics.Counter(interfaces.MetricReportErrors, 1, map[string]string{interfaces.TagSink: sink.Name()})
			return sum, err
		}
		s.metrics.Counter(interfaces.MetricReportRecords, 1, map[string]string{interfaces.TagSink: sink.Name()})
	}

	sum.Duration = time.Since(start)
	s.metrics.Counter(interfaces.MetricScanFiles, sum.Files, nil)
	s.metrics.Timer(interfaces.MetricScanDuration, sum.Duration, nil)
	s.logger.Info("scan complete",
		"files", sum.Files,
		"fallbacks", sum.Fallbacks,
		"errors", sum.Errors,
		"duration", sum.Duration)
	return sum, nil
}

// resolveAll resolves files in parallel into a slice indexed like files.
func (s *Scanner) resolveAll(ctx context.Context, files []string) ([]report.Record, error) {
	records := make([]report.Record, len(files))
	if len(files) == 0 {
		return records, nil
	}

	var progress interface{ Add(int) error }
	if s.opts.Progress != nil {
		bar := tui.ShowProgress(s.opts.Progress, int64(len(files)), "scanning")
		defer bar.Finish()
		progress = bar
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, path := range files {
		i, path := i, path
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = s.ResolveFile(gctx, path)
			if progress != nil {
				_ = progress.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ResolveFile resolves one file through both paths.
func (s *Scanner) ResolveFile(ctx context.Context, path string) report.Record {
	file := s.resolver.ResolveLocator(ctx, path)

	var stream *resolve.Resolution
	if !s.opts.SkipStream {
		stream = s.resolveStream(ctx, path)
	}

	rec := report.FromResolution(path, file, stream)
	if info, err := os.Stat(path); err == nil {
		rec.Size = info.Size()
		rec.ModTime = info.ModTime()
	}
	return rec
}

// resolveStream opens the raw file, samples it and closes it. Compressed
// files are not decompressed here: the stream column reports what a reader
// of the raw bytes would see. The open failure is already captured by the
// addressable resolution.
func (s *Scanner) resolveStream(ctx context.Context, path string) *resolve.Resolution {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	res := s.resolver.Resolve(ctx, sources.NewStreamSource(f, s.opts.SampleSize))
	return &res
}
