package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codepage/codepage/pkg/ingest/sources"
	"github.com/codepage/codepage/pkg/report"
	"github.com/codepage/codepage/pkg/resolve"
)

var (
	streamMode   bool
	streamSample int
)

var detectCmd = &cobra.Command{
	Use:   "detect [locator...]",
	Short: "Detect the encoding of files, URLs or a stream",
	Long: `Detect the encoding of each locator. A locator is a local path, a file://,
http(s):// or s3:// URL. Detectors may read as much of an addressable
resource as they need.

With --stream only the first N bytes of the input are sampled, the way a
one-shot stream is inspected. Use "-" (or no argument) to read stdin.`,
	Example: `  codepage detect index.html data.csv
  codepage detect https://example.com/ s3://bucket/key.xml
  curl -s https://example.com | codepage detect --stream -n 512`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().BoolVar(&streamMode, "stream", false, "Sample the input as a one-shot stream")
	detectCmd.Flags().IntVarP(&streamSample, "bytes", "n", -1, "Stream sample size in bytes (default: --sample-size)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if !streamMode && len(args) == 0 {
		return fmt.Errorf("at least one locator is required (or use --stream)")
	}

	ctx, cancel := signalContext(cmd.Context(), nil)
	defer cancel()

	sink, err := a.openSinks(nil, "", cmd.OutOrStdout())
	if err != nil {
		return err
	}

	var writeErr error
	emit := func(rec report.Record) {
		if err := sink.Write(ctx, rec); err != nil && writeErr == nil {
			writeErr = err
		}
	}

	if streamMode {
		n := a.cfg.Detection.SampleSize
		if cmd.Flags().Changed("bytes") {
			n = streamSample
		}
		if len(args) == 0 {
			args = []string{"-"}
		}
		for _, name := range args {
			emit(detectStream(ctx, a.resolver, cmd.InOrStdin(), name, n))
		}
	} else {
		for _, locator := range args {
			res := a.resolver.ResolveLocator(ctx, locator)
			emit(report.FromResolution(locator, res, nil))
		}
	}

	if err := sink.Close(ctx); err != nil && writeErr == nil {
		writeErr = err
	}
	return writeErr
}

// detectStream samples stdin ("-") or a file opened as a raw stream.
func detectStream(ctx context.Context, r *resolve.Resolver, stdin io.Reader, name string, n int) report.Record {
	reader := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			// Still resolved: an unreadable stream falls back to the default.
			res := r.Resolve(ctx, sources.NewStreamSource(errReader{err}, n))
			return report.FromResolution(name, res, nil)
		}
		defer f.Close()
		reader = f
	}

	res := r.Resolve(ctx, sources.NewStreamSource(reader, n))
	return report.FromResolution(name, res, nil)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
