// Package detect infers the character encoding of a source with an ordered
// chain of independent detectors. A detector either names an encoding or
// returns the zero Encoding ("no opinion"); errors are reserved for sources
// that cannot be read.
package detect

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codepage/codepage/pkg/errors"
	"github.com/codepage/codepage/pkg/ingest/core"
)

// Detector guesses the encoding of a source. Implementations must be safe for
// concurrent use, close every reader they open, and never read a Sampled
// source past its sample size. Malformed content is not an error.
type Detector interface {
	Name() string
	Detect(ctx context.Context, src core.Source) (core.Encoding, error)
}

// Result is a chain answer together with the detector that produced it.
type Result struct {
	Encoding core.Encoding
	Detector string
}

// Chain runs detectors in registration order and returns the first answer.
// It is immutable after construction and itself a Detector, so chains nest.
type Chain struct {
	detectors []Detector
	logger    *slog.Logger
	tracer    trace.Tracer
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets the logger used for per-detector debug output.
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for codepage.detect.<name> spans.
func WithTracer(tracer trace.Tracer) ChainOption {
	return func(c *Chain) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// NewChain builds a chain over a copy of detectors. Nil entries are dropped.
func NewChain(detectors []Detector, opts ...ChainOption) *Chain {
	c := &Chain{
		detectors: make([]Detector, 0, len(detectors)),
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/codepage/codepage/pkg/ingest/detect"),
	}
	for _, d := range detectors {
		if d != nil {
			c.detectors = append(c.detectors, d)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) Name() string { return "chain" }

// Detectors returns the detector names in evaluation order.
func (c *Chain) Detectors() []string {
	names := make([]string, len(c.detectors))
	for i, d := range c.detectors {
		names[i] = d.Name()
	}
	return names
}

// Len returns the number of detectors.
func (c *Chain) Len() int { return len(c.detectors) }

// Detect returns the first non-zero answer, or the zero Encoding when every
// detector abstains.
func (c *Chain) Detect(ctx context.Context, src core.Source) (core.Encoding, error) {
	r, err := c.DetectResult(ctx, src)
	return r.Encoding, err
}

// DetectResult is Detect plus the name of the detector that answered. For a
// nested chain the inner detector's name is reported.
func (c *Chain) DetectResult(ctx context.Context, src core.Source) (Result, error) {
	for _, d := range c.detectors {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.SourceUnavailable(src.Location(), err)
		}

		r, err := c.run(ctx, d, src)
		if err != nil {
			return Result{Detector: d.Name()}, err
		}
		if !r.Encoding.IsZero() {
			c.logger.Debug("encoding detected",
				"location", src.Location(),
				"detector", r.Detector,
				"encoding", r.Encoding.String())
			return r, nil
		}
	}
	return Result{}, nil
}

func (c *Chain) run(ctx context.Context, d Detector, src core.Source) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "codepage.detect."+d.Name(),
		trace.WithAttributes(attribute.String("codepage.location", src.Location())))
	defer span.End()

	var (
		r   Result
		err error
	)
	if inner, ok := d.(*Chain); ok {
		r, err = inner.DetectResult(ctx, src)
	} else {
		r.Encoding, err = d.Detect(ctx, src)
		r.Detector = d.Name()
	}

	if err != nil {
		if errors.GetCode(err) == errors.CodeUnknown {
			err = errors.SourceUnavailable(src.Location(), err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return r, err
	}

	if r.Encoding.IsZero() {
		r.Detector = ""
		return r, nil
	}
	span.SetAttributes(
		attribute.String("codepage.encoding", string(r.Encoding)),
		attribute.String("codepage.detector", r.Detector))
	return r, nil
}

// Verify interface compliance
var _ Detector = (*Chain)(nil)
