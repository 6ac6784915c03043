// Package resolve turns a locator or a byte stream into an encoding name. It
// runs the detector chain and substitutes the default encoding, in one place,
// whenever the chain has no answer or the source cannot be read.
package resolve

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	metricsdefaults "github.com/codepage/codepage/pkg/defaults/metrics"
	"github.com/codepage/codepage/pkg/errors"
	"github.com/codepage/codepage/pkg/ingest/core"
	"github.com/codepage/codepage/pkg/ingest/detect"
	"github.com/codepage/codepage/pkg/ingest/sources"
	"github.com/codepage/codepage/pkg/interfaces"
)

// Opener turns a locator into an addressable source.
type Opener interface {
	Open(ctx context.Context, locator string) (core.Source, error)
}

// Resolution is the outcome of one resolve call. Encoding is never empty.
// Fallback is set when Encoding came from the default provider; Err holds the
// source failure that caused it, if any.
type Resolution struct {
	Encoding core.Encoding
	Detector string
	Fallback bool
	Err      error
}

// Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	chain   *detect.Chain
	opener  Opener
	def     DefaultFunc
	logger  *slog.Logger
	metrics interfaces.MetricsExporter
	tracer  trace.Tracer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefault sets the default encoding provider.
func WithDefault(f DefaultFunc) Option {
	return func(r *Resolver) {
		if f != nil {
			r.def = f
		}
	}
}

// WithOpener sets the locator opener.
func WithOpener(o Opener) Option {
	return func(r *Resolver) {
		if o != nil {
			r.opener = o
		}
	}
}

// WithLogger sets the logger fallbacks are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics exporter.
func WithMetrics(m interfaces.MetricsExporter) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithTracer sets the tracer for codepage.resolve spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) {
		if t != nil {
			r.tracer = t
		}
	}
}

// New creates a resolver around chain. A nil chain resolves everything to
// the default encoding.
func New(chain *detect.Chain, opts ...Option) *Resolver {
	if chain == nil {
		chain = detect.NewChain(nil)
	}
	r := &Resolver{
		chain:   chain,
		opener:  sources.NewOpener(),
		def:     SystemDefault,
		logger:  slog.Default(),
		metrics: metricsdefaults.NewNoopMetrics(),
		tracer:  otel.Tracer("github.com/codepage/codepage/pkg/resolve"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Chain returns the detector chain.
func (r *Resolver) Chain() *detect.Chain { return r.chain }

// ResolveAddressable resolves the encoding of a path or URL.
func (r *Resolver) ResolveAddressable(ctx context.Context, locator string) core.Encoding {
	return r.ResolveLocator(ctx, locator).Encoding
}

// ResolveLocator is ResolveAddressable with the full resolution detail.
func (r *Resolver) ResolveLocator(ctx context.Context, locator string) Resolution {
	src, err := r.opener.Open(ctx, locator)
	if err != nil {
		start := time.Now()
		ctx, span := r.startSpan(ctx, locator, "addressable")
		defer span.End()
		return r.settle(ctx, span, locator, "addressable", start, detect.Result{}, err)
	}
	return r.Resolve(ctx, src)
}

// ResolveStream resolves the encoding of the first sampleSize bytes of
// reader. Zero yields an empty sample and therefore the default; a negative
// size selects sources.DefaultSampleSize. At most sampleSize bytes are
// consumed and reader is not closed.
func (r *Resolver) ResolveStream(ctx context.Context, reader io.Reader, sampleSize int) core.Encoding {
	return r.ResolveSource(ctx, sources.NewStreamSource(reader, sampleSize))
}

// ResolveSource resolves an already constructed source.
func (r *Resolver) ResolveSource(ctx context.Context, src core.Source) core.Encoding {
	return r.Resolve(ctx, src).Encoding
}

// Resolve runs the chain over src and settles the outcome.
func (r *Resolver) Resolve(ctx context.Context, src core.Source) Resolution {
	mode := "addressable"
	if core.SampleLimit(src) >= 0 {
		mode = "stream"
	}

	start := time.Now()
	ctx, span := r.startSpan(ctx, src.Location(), mode)
	defer span.End()

	result, err := r.detect(ctx, src)
	return r.settle(ctx, span, src.Location(), mode, start, result, err)
}

func (r *Resolver) startSpan(ctx context.Context, location, mode string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "codepage.resolve", trace.WithAttributes(
		attribute.String("codepage.location", location),
		attribute.String("codepage.mode", mode)))
}

// detect runs the chain, converting a detector panic into an error so the
// resolver stays total.
func (r *Resolver) detect(ctx context.Context, src core.Source) (result detect.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = detect.Result{}
			err = errors.Recovered("detector panicked", p)
		}
	}()
	return r.chain.DetectResult(ctx, src)
}

// settle is the only place a missing answer or a source failure becomes the
// default encoding.
func (r *Resolver) settle(ctx context.Context, span trace.Span, location, mode string, start time.Time, result detect.Result, err error) Resolution {
	tags := map[string]string{interfaces.TagMode: mode}
	r.metrics.Counter(interfaces.MetricResolveTotal, 1, tags)
	defer func() {
		r.metrics.Timer(interfaces.MetricResolveDuration, time.Since(start), tags)
	}()

	if err == nil && !result.Encoding.IsZero() {
		r.metrics.Counter(interfaces.MetricDetectHits, 1, map[string]string{interfaces.TagDetector: result.Detector})
		span.SetAttributes(
			attribute.String("codepage.encoding", string(result.Encoding)),
			attribute.String("codepage.detector", result.Detector))
		return Resolution{Encoding: result.Encoding, Detector: result.Detector}
	}

	enc := r.defaultEncoding()
	res := Resolution{Encoding: enc, Fallback: true, Err: err}

	if err != nil {
		code := errors.GetCode(err)
		r.metrics.Counter(interfaces.MetricResolveErrors, 1, map[string]string{interfaces.TagCode: string(code)})
		r.logger.WarnContext(ctx, "encoding detection failed, using default",
			"location", location,
			"code", string(code),
			"error", err,
			"default", enc.String())
		if stack := errors.Stack(err); stack != "" {
			r.logger.DebugContext(ctx, "detector panic stack",
				"location", location,
				"stack", stack)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		r.logger.DebugContext(ctx, "no detector answered, using default",
			"location", location,
			"default", enc.String())
	}

	r.metrics.Counter(interfaces.MetricResolveFallbacks, 1, tags)
	span.SetAttributes(
		attribute.String("codepage.encoding", string(enc)),
		attribute.Bool("codepage.fallback", true))
	return res
}

func (r *Resolver) defaultEncoding() core.Encoding {
	if enc := r.def(); !enc.IsZero() {
		return enc
	}
	return core.EncodingUTF8
}
