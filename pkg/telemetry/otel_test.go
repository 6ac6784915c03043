package telemetry

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1.0, sdktrace.AlwaysSample().Description()},
		{0, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.TraceIDRatioBased(0.25).Description()},
	}

	for _, tt := range tests {
		cfg := DefaultOTLPConfig("codepage")
		cfg.SamplingRatio = tt.ratio
		if got := cfg.Sampler().Description(); got != tt.want {
			t.Errorf("ratio %v: expected %s, got %s", tt.ratio, tt.want, got)
		}
	}
}

func TestSetupDisabled(t *testing.T) {
	tracer, shutdown, err := Setup(context.Background(), false, DefaultOTLPConfig("codepage"))
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if tracer == nil {
		t.Fatal("Expected a tracer")
	}
	_, span := tracer.Start(context.Background(), "noop")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Expected no-op shutdown, got %v", err)
	}
}

func TestNewResource(t *testing.T) {
	res, err := NewResource(DefaultOTLPConfig("codepage"))
	if err != nil {
		t.Fatalf("NewResource failed: %v", err)
	}
	found := false
	for _, kv := range res.Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == "codepage" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected service.name=codepage in %v", res.Attributes())
	}
}

func TestExporterTracerBeforeInit(t *testing.T) {
	e := NewOTLPExporter(DefaultOTLPConfig("codepage"))
	if e.IsInitialized() {
		t.Error("Expected exporter not to be initialized")
	}
	if e.Tracer() == nil {
		t.Error("Expected fallback tracer before Init")
	}
}
