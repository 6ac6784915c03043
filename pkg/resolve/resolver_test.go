package resolve

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/codepage/codepage/pkg/config"
	metricsdefaults "github.com/codepage/codepage/pkg/defaults/metrics"
	"github.com/codepage/codepage/pkg/errors"
	"github.com/codepage/codepage/pkg/ingest/core"
	"github.com/codepage/codepage/pkg/ingest/detect"
	"github.com/codepage/codepage/pkg/ingest/sources"
	"github.com/codepage/codepage/pkg/interfaces"
)

const testDefault core.Encoding = "X-DEFAULT"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(opts ...Option) *Resolver {
	base := []Option{
		WithDefault(func() core.Encoding { return testDefault }),
		WithLogger(quietLogger()),
	}
	return New(detect.NewDefaultChain(detect.WithLogger(quietLogger())), append(base, opts...)...)
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

type stubDetector struct {
	name string
	enc  core.Encoding
}

func (s stubDetector) Name() string { return s.name }
func (s stubDetector) Detect(context.Context, core.Source) (core.Encoding, error) {
	return s.enc, nil
}

type panicDetector struct{}

func (panicDetector) Name() string { return "panic" }
func (panicDetector) Detect(context.Context, core.Source) (core.Encoding, error) {
	panic("boom")
}

func TestConcreteScenarios(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	ascii := writeFile(t, "ascii.txt", []byte("0123456789"))
	if got := r.ResolveAddressable(ctx, ascii); got != core.EncodingASCII {
		t.Errorf("Expected US-ASCII for ASCII file, got %q", got)
	}

	bom := writeFile(t, "bom.txt", []byte{0xEF, 0xBB, 0xBF, 0xFF, 0xFE, 0x00, 0x9C})
	if got := r.ResolveAddressable(ctx, bom); got != core.EncodingUTF8 {
		t.Errorf("Expected UTF-8 for BOM file, got %q", got)
	}

	if got := r.ResolveStream(ctx, strings.NewReader(""), 128); got != testDefault {
		t.Errorf("Expected default for empty stream, got %q", got)
	}
}

func TestResolveStream(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	tests := []struct {
		name       string
		data       string
		sampleSize int
		want       core.Encoding
	}{
		{"ascii", "hello world", 128, core.EncodingASCII},
		{"bom", "\xFE\xFF\x00h", 128, core.EncodingUTF16BE},
		{"zero sample", "hello world", 0, testDefault},
		{"negative sample uses default size", "hello", -1, core.EncodingASCII},
		{"high byte past sample", "abc\xE9", 3, core.EncodingASCII},
		{"sample larger than stream", "abc", math.MaxInt32, core.EncodingASCII},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.ResolveStream(ctx, strings.NewReader(tt.data), tt.sampleSize); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFallbackOnSourceFailure(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	res := r.ResolveLocator(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	if res.Encoding != testDefault || !res.Fallback {
		t.Errorf("Expected fallback to default, got %+v", res)
	}
	if !errors.IsCode(res.Err, errors.CodeSourceUnavailable) {
		t.Errorf("Expected E101 cause, got %v", res.Err)
	}

	f, err := os.CreateTemp(t.TempDir(), "closed")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if got := r.ResolveStream(ctx, f, 128); got != testDefault {
		t.Errorf("Expected default for closed stream, got %q", got)
	}

	if got := r.ResolveAddressable(ctx, "gopher://nowhere"); got != testDefault {
		t.Errorf("Expected default for invalid locator, got %q", got)
	}
}

func TestMislabeledGzipResolves(t *testing.T) {
	r := newResolver()
	path := writeFile(t, "notes.txt.gz", []byte("plain ascii"))

	res := r.ResolveLocator(context.Background(), path)
	if res.Encoding != core.EncodingASCII || res.Err != nil {
		t.Errorf("Expected US-ASCII without error, got %+v", res)
	}
}

func TestFallbackOnCanceledContext(t *testing.T) {
	r := newResolver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Resolve(ctx, sources.NewMemorySource("m", []byte("abc"), core.FormatText))
	if res.Encoding != testDefault || !errors.IsCode(res.Err, errors.CodeContextCanceled) {
		t.Errorf("Expected default with E401, got %+v", res)
	}
}

func TestFirstRegisteredWins(t *testing.T) {
	chain := detect.NewChain([]detect.Detector{
		stubDetector{name: "a", enc: "X-A"},
		stubDetector{name: "b", enc: "X-B"},
	})
	r := New(chain, WithLogger(quietLogger()))

	res := r.Resolve(context.Background(), sources.NewMemorySource("m", []byte("x"), core.FormatUnknown))
	if res.Encoding != "X-A" || res.Detector != "a" || res.Fallback {
		t.Errorf("Expected X-A from a, got %+v", res)
	}
}

func TestPanicBecomesDefault(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := New(detect.NewChain([]detect.Detector{panicDetector{}}),
		WithDefault(func() core.Encoding { return testDefault }),
		WithLogger(logger))

	res := r.Resolve(context.Background(), sources.NewMemorySource("m", []byte("x"), core.FormatUnknown))
	if res.Encoding != testDefault || !errors.IsCode(res.Err, errors.CodeUnknown) {
		t.Errorf("Expected default with E999, got %+v", res)
	}
	if !strings.Contains(logs.String(), "detector panic stack") || !strings.Contains(logs.String(), "resolver_test.go") {
		t.Errorf("Expected panic stack in debug log, got:\n%s", logs.String())
	}
}

func TestEmptyDefaultIsReplaced(t *testing.T) {
	r := New(nil, WithDefault(func() core.Encoding { return "" }), WithLogger(quietLogger()))
	if got := r.ResolveStream(context.Background(), strings.NewReader("x"), 0); got != core.EncodingUTF8 {
		t.Errorf("Expected UTF-8 when default provider is empty, got %q", got)
	}
}

func TestIdempotentAddressable(t *testing.T) {
	r := newResolver()
	path := writeFile(t, "page.html", []byte(`<html><head><meta charset="iso-8859-1"></head><body>caf`+"\xE9"+`</body></html>`))

	first := r.ResolveAddressable(context.Background(), path)
	for i := 0; i < 3; i++ {
		if got := r.ResolveAddressable(context.Background(), path); got != first {
			t.Errorf("Run %d: expected %q, got %q", i, first, got)
		}
	}
	if first.IsZero() {
		t.Error("Expected a non-empty encoding")
	}
}

func TestConcurrentResolve(t *testing.T) {
	r := newResolver()
	path := writeFile(t, "a.txt", []byte("plain ascii text"))

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 32; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if got := r.ResolveAddressable(context.Background(), path); got != core.EncodingASCII {
				errs <- string(got)
			}
		}()
		go func() {
			defer wg.Done()
			if got := r.ResolveStream(context.Background(), strings.NewReader("\xEF\xBB\xBFx"), 16); got != core.EncodingUTF8 {
				errs <- string(got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("Unexpected concurrent result %q", got)
	}
}

func TestMetricsAndSpans(t *testing.T) {
	m := metricsdefaults.NewMemoryMetrics()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	chain := detect.NewDefaultChain(detect.WithLogger(quietLogger()), detect.WithTracer(tp.Tracer("test")))
	r := New(chain,
		WithDefault(func() core.Encoding { return testDefault }),
		WithLogger(quietLogger()),
		WithMetrics(m),
		WithTracer(tp.Tracer("test")))

	ctx := context.Background()
	r.ResolveStream(ctx, strings.NewReader("ascii"), 16)
	r.ResolveStream(ctx, strings.NewReader("ascii"), 0)
	r.ResolveAddressable(ctx, filepath.Join(t.TempDir(), "missing"))

	stream := map[string]string{interfaces.TagMode: "stream"}
	if got := m.CounterValue(interfaces.MetricResolveTotal, stream); got != 2 {
		t.Errorf("Expected 2 stream resolves, got %d", got)
	}
	if got := m.CounterValue(interfaces.MetricResolveFallbacks, stream); got != 1 {
		t.Errorf("Expected 1 stream fallback, got %d", got)
	}
	if got := m.CounterValue(interfaces.MetricDetectHits, map[string]string{interfaces.TagDetector: "ascii"}); got != 1 {
		t.Errorf("Expected 1 ascii hit, got %d", got)
	}
	if got := m.CounterValue(interfaces.MetricResolveErrors, map[string]string{interfaces.TagCode: "E101"}); got != 1 {
		t.Errorf("Expected 1 E101 error, got %d", got)
	}

	names := map[string]int{}
	for _, s := range rec.Ended() {
		names[s.Name()]++
	}
	if names["codepage.resolve"] != 3 {
		t.Errorf("Expected 3 resolve spans, got %v", names)
	}
	if names["codepage.detect.ascii"] == 0 {
		t.Errorf("Expected detect spans, got %v", names)
	}
}

func TestLocaleDefault(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want core.Encoding
	}{
		{"unset", nil, core.EncodingUTF8},
		{"C", map[string]string{"LANG": "C"}, core.EncodingASCII},
		{"POSIX via LC_ALL", map[string]string{"LC_ALL": "POSIX", "LANG": "en_US.UTF-8"}, core.EncodingASCII},
		{"utf8 codeset", map[string]string{"LANG": "de_DE.utf8"}, core.EncodingUTF8},
		{"latin1 codeset", map[string]string{"LC_CTYPE": "fr_FR.ISO-8859-1@euro"}, "ISO-8859-1"},
		{"no codeset", map[string]string{"LANG": "en_US"}, core.EncodingUTF8},
		{"unknown codeset", map[string]string{"LANG": "xx_XX.bogus"}, core.EncodingUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := localeDefault(func(k string) string { return tt.env[k] })
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFixed(t *testing.T) {
	if got := Fixed("utf8")(); got != core.EncodingUTF8 {
		t.Errorf("Expected UTF-8, got %q", got)
	}
	if got := Fixed("x-custom")(); got != "x-custom" {
		t.Errorf("Expected raw name kept, got %q", got)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Detection.Order = []string{"ascii"}
	cfg.Detection.DefaultEncoding = "windows-1252"

	r, err := FromConfig(cfg, quietLogger())
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if got := strings.Join(r.Chain().Detectors(), ","); got != "ascii" {
		t.Errorf("Expected ascii chain, got %s", got)
	}
	if got := r.ResolveStream(context.Background(), strings.NewReader("\xEF\xBB\xBFx"), 8); got.IsZero() || got == core.EncodingUTF8 {
		t.Errorf("Expected pinned default without unicode detector, got %q", got)
	}

	cfg.Detection.Order = []string{"magic"}
	if _, err := FromConfig(cfg, quietLogger()); !errors.IsCode(err, errors.CodeUnknownDetector) {
		t.Errorf("Expected E201, got %v", err)
	}
}
