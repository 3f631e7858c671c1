package telemetry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := inst.(noopInstrumenter); !ok {
		t.Fatalf("expected noop instrumenter, got %T", inst)
	}
	ctx, span := inst.Start(context.Background(), RequestStart{})
	if ctx == nil || span == nil {
		t.Fatalf("noop start must return usable values")
	}
	span.End(RequestResult{})
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestRequestSpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	inst, err := New(Config{ServiceName: "rstd-test", RunID: "run-1"}, WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	req, _ := http.NewRequest(http.MethodGet, "http://api.local/users?id=1", nil)
	_, span := inst.Start(context.Background(), RequestStart{Name: "list-users", HTTPRequest: req})
	span.End(RequestResult{StatusCode: 200, Bytes: 12})

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	if got.Name() != "list-users" {
		t.Fatalf("span name = %q", got.Name())
	}
	if got.SpanKind() != trace.SpanKindClient {
		t.Fatalf("span kind = %v", got.SpanKind())
	}
	if got.Status().Code != codes.Ok {
		t.Fatalf("status = %v", got.Status())
	}
	assertAttribute(t, got, "http.request.method", attribute.StringValue("GET"))
	assertAttribute(t, got, "url.full", attribute.StringValue("http://api.local/users?id=1"))
	assertAttribute(t, got, "server.address", attribute.StringValue("api.local"))
	assertAttribute(t, got, "http.response.status_code", attribute.IntValue(200))
	assertAttribute(t, got, "rested.run.id", attribute.StringValue("run-1"))

	found := false
	for _, kv := range got.Resource().Attributes() {
		if kv.Key == "service.name" && kv.Value.AsString() == "rstd-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("service.name missing from resource")
	}
}

func TestRequestSpanErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	inst, err := New(Config{}, WithSpanProcessor(recorder))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, "http://api.local/x", nil)
	_, span := inst.Start(context.Background(), RequestStart{HTTPRequest: req})
	span.End(RequestResult{Err: errors.New("connection refused")})
	_, span = inst.Start(context.Background(), RequestStart{HTTPRequest: req})
	span.End(RequestResult{StatusCode: 503})

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "POST" {
		t.Fatalf("unnamed span should use the method, got %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error || len(spans[0].Events()) == 0 {
		t.Fatalf("transport error should record an error event: %+v", spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "HTTP 503" {
		t.Fatalf("5xx should be an error status, got %+v", spans[1].Status())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	inst, err := New(Config{}, WithSpanProcessor(tracetest.NewSpanRecorder()))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := inst.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := inst.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	env := map[string]string{
		envEndpoint:    " collector:4317 ",
		envInsecure:    "true",
		envService:     "svc",
		envDialTimeout: "2s",
		envHeaders:     "authorization=Bearer x, team = core",
	}
	cfg := ConfigFromEnv(func(k string) string { return env[k] })
	if !cfg.Enabled() || cfg.Endpoint != "collector:4317" {
		t.Fatalf("endpoint = %q", cfg.Endpoint)
	}
	if !cfg.Insecure || cfg.ServiceName != "svc" || cfg.DialTimeout != 2*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Headers["team"] != "core" || cfg.Headers["authorization"] != "Bearer x" {
		t.Fatalf("headers = %v", cfg.Headers)
	}

	merged := Config{ServiceName: "flag"}.Merge(cfg)
	if merged.ServiceName != "flag" || merged.Endpoint != "collector:4317" {
		t.Fatalf("merge = %+v", merged)
	}
}

func TestParseHeaders(t *testing.T) {
	if h, err := ParseHeaders("  "); err != nil || h != nil {
		t.Fatalf("blank input = %v, %v", h, err)
	}
	if _, err := ParseHeaders("novalue"); err == nil {
		t.Fatalf("expected error for missing '='")
	}
	if _, err := ParseHeaders("=v"); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func assertAttribute(t *testing.T, span sdktrace.ReadOnlySpan, key string, want attribute.Value) {
	t.Helper()
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			if kv.Value != want {
				t.Fatalf("attribute %s = %v, want %v", key, kv.Value.Emit(), want.Emit())
			}
			return
		}
	}
	t.Fatalf("attribute %s not found", key)
}
