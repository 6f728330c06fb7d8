package tracing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/isoflux/internal/action"
	"github.com/dshills/isoflux/internal/app"
	"github.com/dshills/isoflux/internal/fluxctx"
	"github.com/dshills/isoflux/internal/plugins/tracing"
)

func newProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

func newContext(t *testing.T, tp trace.TracerProvider) (*fluxctx.Context, *tracing.Plugin) {
	t.Helper()
	p := tracing.New(tracing.WithTracerProvider(tp))
	c := fluxctx.New(fluxctx.Options{})
	c.MustPlug(p)
	return c, p
}

func TestPlugActionContext(t *testing.T) {
	tp, _ := newProvider(t)
	c, p := newContext(t, tp)

	ac := c.ActionContext()
	if _, ok := fluxctx.Capability[trace.Tracer](ac, tracing.CapTracer); !ok {
		t.Error("expected tracer capability")
	}
	if tracing.TraceContext(ac) != p.Context() {
		t.Error("expected traceContext to return the plugin context")
	}
	if c.ComponentContext().Has(tracing.CapTracer) {
		t.Error("expected tracer only on the action view")
	}
}

func TestTracedResolved(t *testing.T) {
	tp, sr := newProvider(t)
	c, p := newContext(t, tp)
	root := p.Start("request")

	fn := tracing.Traced("counter.increment", fluxctx.Sync(func(*fluxctx.ActionContext, any) (any, error) {
		return 1, nil
	}))
	comp := c.ActionContext().ExecuteAction(fn, nil)
	if v, err := comp.Await(context.Background()); err != nil || v != 1 {
		t.Fatalf("expected 1, got %v, %v", v, err)
	}
	root.End()

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "counter.increment" {
		t.Errorf("expected counter.increment, got %q", span.Name())
	}
	if span.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Error("expected action span to be a child of the request span")
	}
	if span.Status().Code == codes.Error {
		t.Error("expected resolved action not to mark an error")
	}
}

func TestTracedPreservesRejection(t *testing.T) {
	tp, sr := newProvider(t)
	c, _ := newContext(t, tp)
	boom := errors.New("boom")

	inner := action.Rejected(boom)
	fn := tracing.Traced("fail", func(*fluxctx.ActionContext, any) *action.Completion {
		return inner
	})
	comp := c.ActionContext().ExecuteAction(fn, nil)

	if comp != inner {
		t.Error("expected the completion returned by the action")
	}
	if _, err := comp.Await(context.Background()); err != boom {
		t.Errorf("expected the same error instance, got %v", err)
	}
	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "boom" {
		t.Errorf("expected error status, got %+v", spans[0].Status())
	}
}

func TestTracedEndsOnSettle(t *testing.T) {
	tp, sr := newProvider(t)
	c, _ := newContext(t, tp)

	pending, resolve, _ := action.New()
	fn := tracing.Traced("slow", func(*fluxctx.ActionContext, any) *action.Completion {
		return pending
	})
	c.ActionContext().ExecuteAction(fn, nil)

	if len(sr.Ended()) != 0 {
		t.Fatal("expected span to stay open while pending")
	}
	resolve("done")
	if len(sr.Ended()) != 1 {
		t.Errorf("expected span to end on settle, got %d ended", len(sr.Ended()))
	}
}

func TestTracedWithoutPlugin(t *testing.T) {
	c := fluxctx.New(fluxctx.Options{})
	fn := tracing.Traced("plain", fluxctx.Sync(func(*fluxctx.ActionContext, any) (any, error) {
		return "ok", nil
	}))

	if v, err, _ := c.ActionContext().ExecuteAction(fn, nil).Result(); err != nil || v != "ok" {
		t.Errorf("expected ok, got %v, %v", v, err)
	}
}

func TestDehydrateRehydrate(t *testing.T) {
	tp, sr := newProvider(t)
	src, srcPlugin := newContext(t, tp)
	root := srcPlugin.Start("server")
	defer root.End()

	snap, err := src.Dehydrate()
	if err != nil {
		t.Fatalf("Dehydrate failed: %v", err)
	}
	raw, ok := snap.Plugin(tracing.Name)
	if !ok || !strings.Contains(string(raw), "traceparent") {
		t.Fatalf("expected traceparent in state, got %s", raw)
	}

	dst, _ := newContext(t, tp)
	if err := dst.Rehydrate(snap); err != nil {
		t.Fatalf("Rehydrate failed: %v", err)
	}

	fn := tracing.Traced("client", fluxctx.Sync(func(*fluxctx.ActionContext, any) (any, error) {
		return nil, nil
	}))
	dst.ActionContext().ExecuteAction(fn, nil)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].SpanContext().TraceID() != root.SpanContext().TraceID() {
		t.Error("expected client span to continue the server trace")
	}
	if spans[0].Parent().SpanID() != root.SpanContext().SpanID() {
		t.Error("expected client span parent to be the server span")
	}
}

func TestDehydrateWithoutTrace(t *testing.T) {
	tp, _ := newProvider(t)
	c, _ := newContext(t, tp)

	snap, err := c.Dehydrate()
	if err != nil {
		t.Fatalf("Dehydrate failed: %v", err)
	}
	if _, ok := snap.Plugin(tracing.Name); ok {
		t.Error("expected no state without an active trace")
	}
}

func TestRehydrateInvalid(t *testing.T) {
	p := tracing.New()
	if err := p.Rehydrate([]byte(`[1,2]`)); err == nil {
		t.Error("expected error for non-object state")
	}
}

func TestNewAppUsesContextOption(t *testing.T) {
	tp, _ := newProvider(t)
	parent, span := tp.Tracer("test").Start(context.Background(), "incoming")
	defer span.End()

	a, err := app.New(app.Options{Plugins: []app.Plugin{tracing.NewApp(tracing.WithTracerProvider(tp))}})
	if err != nil {
		t.Fatalf("app.New failed: %v", err)
	}
	c := a.CreateContextWithOptions(app.ContextOptions{
		Values: map[string]any{tracing.OptionTraceContext: parent},
	})

	got := trace.SpanContextFromContext(tracing.TraceContext(c.ActionContext()))
	if got.SpanID() != span.SpanContext().SpanID() {
		t.Error("expected context to inherit the incoming span")
	}
}
