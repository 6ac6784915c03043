package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/codepage/codepage/pkg/scan"
	"github.com/codepage/codepage/pkg/tui"
	"github.com/codepage/codepage/pkg/watch"
)

var (
	scanWorkers  int
	scanInclude  []string
	scanExclude  []string
	scanNoStream bool
	scanQuiet    bool
	sinkNames    []string
	outputPath   string
	watchDelay   time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Detect the encoding of every file under one or more roots",
	Long: `Walk each root (a directory, a file or a glob pattern) and report every
regular file's encoding twice: once from the file itself and once from a
stream sample of its leading bytes.`,
	Example: `  codepage scan ./src --include '*.java' --exclude 'build/**'
  codepage scan . --sink parquet --sink xlsx -o report.parquet`,
	RunE: runScan,
}

var watchCmd = &cobra.Command{
	Use:   "watch <file...>",
	Short: "Report a file's encoding again each time it changes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatch,
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, watchCmd} {
		c.Flags().StringArrayVar(&sinkNames, "sink", nil, "Report sink (console, jsonl, parquet, xlsx, redis); repeatable")
		c.Flags().StringVarP(&outputPath, "output", "o", "", "Output path for file sinks")
		c.Flags().BoolVar(&scanNoStream, "no-stream", false, "Skip the stream-sample resolution")
	}

	scanCmd.Flags().IntVarP(&scanWorkers, "workers", "w", 0, "Parallel workers (default: config or CPU count)")
	scanCmd.Flags().StringArrayVar(&scanInclude, "include", nil, "Glob of files to include; repeatable")
	scanCmd.Flags().StringArrayVar(&scanExclude, "exclude", nil, "Glob of files to exclude; repeatable")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "Hide the progress bar")

	watchCmd.Flags().DurationVar(&watchDelay, "debounce", watch.DefaultDebounce, "Quiet period before a change is resolved")
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 0 {
		args = []string{"."}
	}

	opts := scan.OptionsFromConfig(a.cfg)
	if cmd.Flags().Changed("workers") {
		opts.Workers = scanWorkers
	}
	opts.Walk.Include = append(opts.Walk.Include, scanInclude...)
	opts.Walk.Exclude = append(opts.Walk.Exclude, scanExclude...)
	opts.SkipStream = scanNoStream
	opts.Logger = a.logger
	opts.Metrics = a.metrics
	if !scanQuiet && !jsonOutput && !verbose {
		opts.Progress = cmd.ErrOrStderr()
	}

	ctx, cancel := signalContext(cmd.Context(), func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted, stopping workers...")
	})
	defer cancel()

	sink, err := a.openSinks(sinkNames, outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	sum, scanErr := scan.New(a.resolver, opts).Scan(ctx, args, sink)
	if err := sink.Close(ctx); err != nil && scanErr == nil {
		scanErr = err
	}
	if scanErr != nil {
		return scanErr
	}

	if !jsonOutput && !hasConsole(sinkNames, a.cfg.Report.Sinks) {
		printSummary(cmd.ErrOrStderr(), sum)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	opts := scan.OptionsFromConfig(a.cfg)
	opts.SkipStream = scanNoStream
	opts.Logger = a.logger
	opts.Metrics = a.metrics
	scanner := scan.New(a.resolver, opts)

	sink, err := a.openSinks(sinkNames, outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	w, err := watch.New(scanner, sink, watch.Options{
		Debounce: watchDelay,
		Initial:  true,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	for _, path := range args {
		if err := w.Watch(path); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext(cmd.Context(), func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nStopping watch")
	})
	defer cancel()

	runErr := w.Run(ctx)
	if err := sink.Close(cmd.Context()); err != nil {
		return err
	}
	if runErr == ctx.Err() {
		return nil
	}
	return runErr
}

// hasConsole reports whether the console sink already printed a summary.
func hasConsole(flagSinks, cfgSinks []string) bool {
	names := flagSinks
	if len(names) == 0 {
		names = cfgSinks
	}
	for _, n := range names {
		if n == "console" {
			return true
		}
	}
	return false
}

func printSummary(w io.Writer, sum scan.Summary) {
	tui.PrintSummary(w, tui.Summary{
		Files:     sum.Files,
		Fallbacks: sum.Fallbacks,
		Errors:    sum.Errors,
		Bytes:     sum.Bytes,
		Duration:  sum.Duration,
	})
}
