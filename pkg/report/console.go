package report

import (
	"context"
	"io"
	"sync"

	"github.com/codepage/codepage/pkg/tui"
)

// ConsoleSink prints one styled line per record and a summary on Close.
type ConsoleSink struct {
	w  io.Writer
	mu sync.Mutex

	summary tui.Summary
}

// NewConsoleSink writes to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (c *ConsoleSink) Name() string { return "console" }

func (c *ConsoleSink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tui.PrintLine(c.w, tui.Line{
		Location: rec.Path,
		Encoding: rec.FileEncoding,
		Stream:   rec.StreamEncoding,
		Detector: rec.Detector,
		Fallback: rec.Fallback,
		Error:    rec.Error,
	})

	c.summary.Files++
	if rec.Fallback {
		c.summary.Fallbacks++
	}
	if rec.Error != "" {
		c.summary.Errors++
	}
	if rec.Size > 0 {
		c.summary.Bytes += rec.Size
	}
	return nil
}

// Close prints the summary when more than one record was written.
func (c *ConsoleSink) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary.Files > 1 {
		tui.PrintSummary(c.w, c.summary)
	}
	return nil
}

var _ Sink = (*ConsoleSink)(nil)
