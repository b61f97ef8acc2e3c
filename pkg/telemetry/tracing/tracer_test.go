package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"tapcanvas/threadgate/pkg/config"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Disabled(t *testing.T) {
	tr, err := New(context.Background(), &config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.Enabled() {
		t.Error("expected disabled tracer")
	}

	ctx, span := tr.Start(context.Background(), SpanRelayRequest)
	span.End()
	if TraceID(ctx) != "" {
		t.Error("noop spans should not carry a valid trace id")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(context.Background(), nil, "test"); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewWithExporter_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tr, err := NewWithExporter(&config.TracingConfig{Enabled: true, Sampler: SamplerAlways}, exporter, "1.2.3")
	if err != nil {
		t.Fatalf("NewWithExporter: %v", err)
	}
	defer tr.Shutdown(context.Background())

	ctx, parent := tr.Start(context.Background(), SpanRelayRequest)
	_, child := tr.Start(ctx, SpanRelayRecover)
	SetError(child, errors.New("thread creation failed"))
	child.End()
	parent.End()

	if err := tr.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != SpanRelayRecover || spans[0].Status.Code != codes.Error {
		t.Errorf("unexpected child span: %s %v", spans[0].Name, spans[0].Status)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("child span must be parented to the relay span")
	}
}

func TestInjectExtract_RoundTrip(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tr, err := NewWithExporter(&config.TracingConfig{Enabled: true, Sampler: SamplerAlways}, exporter, "test")
	if err != nil {
		t.Fatalf("NewWithExporter: %v", err)
	}
	defer tr.Shutdown(context.Background())

	ctx, span := tr.Start(context.Background(), SpanRelayRequest)
	defer span.End()

	headers := http.Header{}
	Inject(ctx, headers)
	if headers.Get("traceparent") == "" {
		t.Fatal("expected traceparent header")
	}

	extracted := Extract(context.Background(), headers)
	_, remote := tr.Start(extracted, "downstream")
	defer remote.End()

	if remote.SpanContext().TraceID() != span.SpanContext().TraceID() {
		t.Error("extracted context should continue the same trace")
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, 1.5, true},
		{"sometimes", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			s, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
			}
			if !tt.wantErr {
				var _ sdktrace.Sampler = s
			}
		})
	}
}
