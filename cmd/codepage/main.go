// codepage reports the character encoding of files, URLs, S3 objects and
// streams.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codepage/codepage/pkg/config"
	"github.com/codepage/codepage/pkg/defaults/metrics"
	"github.com/codepage/codepage/pkg/interfaces"
	"github.com/codepage/codepage/pkg/logging"
	"github.com/codepage/codepage/pkg/report"
	"github.com/codepage/codepage/pkg/resolve"
	"github.com/codepage/codepage/pkg/telemetry"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags
var (
	configFile  string
	orderFlag   string
	defaultFlag string
	sampleSize  int
	jsonOutput  bool
	verbose     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codepage",
	Short: "codepage - detect the character encoding of text",
	Long: `codepage determines the character encoding of files, URLs, S3 objects and
byte streams by asking an ordered chain of detectors. The first detector with
an answer wins; when none has one, the configured default applies.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Config file (default: search /etc/codepage, ~/.codepage, ./.codepage.yaml)")
	pf.StringVar(&orderFlag, "order", "", "Detector order, comma separated (e.g. unicode,ascii,markup)")
	pf.StringVar(&defaultFlag, "default", "", "Encoding used when no detector answers (default: from locale)")
	pf.IntVar(&sampleSize, "sample-size", 0, "Bytes sampled from streams (default 128)")
	pf.BoolVar(&jsonOutput, "json", false, "Write results as JSON lines to stdout")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(detectorsCmd)
	rootCmd.AddCommand(configCmd)
}

// app is the wiring shared by every command.
type app struct {
	manager  *config.Manager
	cfg      *config.Config
	logger   *slog.Logger
	metrics  interfaces.MetricsExporter
	resolver *resolve.Resolver
	shutdown func(context.Context) error
}

// setup loads configuration, applies flags and builds the resolver.
func setup(cmd *cobra.Command) (*app, error) {
	mgr := config.NewManager()
	if err := mgr.Load(configFile); err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	flags := cmd.Flags()
	if flags.Changed("order") {
		cfg.Detection.Order = config.SplitList(orderFlag)
	}
	if flags.Changed("default") {
		cfg.Detection.DefaultEncoding = defaultFlag
	}
	if flags.Changed("sample-size") {
		cfg.Detection.SampleSize = sampleSize
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	otlp := telemetry.DefaultOTLPConfig(cfg.Telemetry.ServiceName)
	otlp.ServiceVersion = version
	if cfg.Telemetry.Endpoint != "" {
		otlp.Endpoint = cfg.Telemetry.Endpoint
	}
	if cfg.Telemetry.SamplingRatio > 0 {
		otlp.SamplingRatio = cfg.Telemetry.SamplingRatio
	}
	tracer, shutdown, err := telemetry.Setup(cmd.Context(), cfg.Telemetry.Enabled, otlp)
	if err != nil {
		return nil, err
	}

	var m interfaces.MetricsExporter = metrics.NewNoopMetrics()
	if verbose {
		m = metrics.NewLogMetrics(metrics.WithLogger(logger))
	}

	r, err := resolve.FromConfig(cfg, logger, resolve.WithMetrics(m), resolve.WithTracer(tracer))
	if err != nil {
		shutdown(context.Background())
		return nil, err
	}

	logger.Debug("codepage configured",
		"config_files", mgr.Paths(),
		"order", r.Chain().Detectors(),
		"default", cfg.Detection.DefaultEncoding)

	return &app{
		manager:  mgr,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		resolver: r,
		shutdown: shutdown,
	}, nil
}

// close flushes metrics and traces.
func (a *app) close() {
	if err := a.metrics.Flush(); err != nil {
		a.logger.Warn("metrics flush failed", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// openSinks opens the report sinks for this run. --json replaces them with
// JSON lines on stdout.
func (a *app) openSinks(names []string, path string, out io.Writer) (*report.Multi, error) {
	if jsonOutput {
		names, path = []string{"jsonl"}, ""
	}
	if len(names) == 0 {
		names = a.cfg.Report.Sinks
	}
	if path == "" && !jsonOutput {
		path = a.cfg.Report.Path
	}
	return report.Open(names, report.Options{
		Path:   path,
		Writer: out,
		Redis: report.RedisOptions{
			Address: a.cfg.Report.Redis.Address,
			Key:     a.cfg.Report.Redis.Key,
			TTL:     a.cfg.Report.Redis.TTL,
		},
	})
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context, onSignal func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			if onSignal != nil {
				onSignal()
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
