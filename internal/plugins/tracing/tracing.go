// Package tracing provides TracingPlugin, which gives actions an
// OpenTelemetry tracer and carries the W3C trace context across
// dehydration so work resumed from a snapshot joins the original trace.
package tracing

import (
	"context"
	"encoding/json"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/isoflux/internal/action"
	"github.com/dshills/isoflux/internal/app"
	"github.com/dshills/isoflux/internal/fluxctx"
)

// Name is the plugin name.
const Name = "TracingPlugin"

// Capabilities contributed to the action view.
const (
	CapTracer       = "tracer"
	CapTraceContext = "traceContext"
)

// OptionTraceContext is the app.ContextOptions key holding the parent
// context.Context of a new context's trace.
const OptionTraceContext = "traceContext"

const instrumentationName = "github.com/dshills/isoflux/internal/plugins/tracing"

// Option configures a Plugin.
type Option func(*Plugin)

// WithTracerProvider sets the provider spans are created from.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Plugin) {
		p.tracer = tp.Tracer(instrumentationName)
	}
}

// WithPropagator sets the propagator used for dehydration.
// Defaults to propagation.TraceContext.
func WithPropagator(tmp propagation.TextMapPropagator) Option {
	return func(p *Plugin) {
		p.propagator = tmp
	}
}

// Plugin is the per-context TracingPlugin.
type Plugin struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	mu  sync.RWMutex
	ctx context.Context
}

// New creates a tracing plugin whose trace context starts empty.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		propagator: propagation.TraceContext{},
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return p
}

// NewApp creates an app plugin producing a tracing plugin per context.
// A context.Context stored under OptionTraceContext becomes the parent of
// the context's spans.
func NewApp(opts ...Option) app.Plugin {
	return app.PluginFunc(Name, func(o app.ContextOptions) fluxctx.Plugin {
		p := New(opts...)
		if v, ok := o.Value(OptionTraceContext); ok {
			if ctx, ok := v.(context.Context); ok && ctx != nil {
				p.SetContext(ctx)
			}
		}
		return p
	})
}

// Name implements fluxctx.Plugin.
func (p *Plugin) Name() string { return Name }

// Tracer returns the plugin's tracer.
func (p *Plugin) Tracer() trace.Tracer { return p.tracer }

// Context returns the context carrying the current trace.
func (p *Plugin) Context() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ctx
}

// SetContext replaces the context carrying the current trace.
func (p *Plugin) SetContext(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
}

// Start starts a span under the current trace and makes it the current
// trace. The caller ends the span.
func (p *Plugin) Start(name string, opts ...trace.SpanStartOption) trace.Span {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, span := p.tracer.Start(p.ctx, name, opts...)
	p.ctx = ctx
	return span
}

// PlugActionContext adds the tracer and a getter for the current trace
// context. The getter is read at call time so rehydration is observed.
func (p *Plugin) PlugActionContext(ac *fluxctx.ActionContext, _ *fluxctx.Context) {
	ac.Set(CapTracer, p.tracer)
	ac.Set(CapTraceContext, p.Context)
}

// Dehydrate implements fluxctx.Dehydrator. A context without an active
// trace is left out of the snapshot.
func (p *Plugin) Dehydrate() (any, error) {
	carrier := propagation.MapCarrier{}
	p.propagator.Inject(p.Context(), carrier)
	if len(carrier) == 0 {
		return nil, fluxctx.ErrNoState
	}
	return map[string]string(carrier), nil
}

// Rehydrate implements fluxctx.Rehydrator.
func (p *Plugin) Rehydrate(raw json.RawMessage) error {
	var carrier map[string]string
	if err := json.Unmarshal(raw, &carrier); err != nil {
		return err
	}
	ctx := p.propagator.Extract(context.Background(), propagation.MapCarrier(carrier))
	p.SetContext(ctx)
	return nil
}

// Traced wraps fn in a span named spanName. The span starts under the
// context's current trace and ends when the completion settles; a
// rejection is recorded on the span. The completion returned by fn is
// returned unchanged. Without a tracer on the view fn runs untraced.
func Traced(spanName string, fn fluxctx.ActionFunc) fluxctx.ActionFunc {
	return func(ac *fluxctx.ActionContext, payload any) *action.Completion {
		tracer, ok := fluxctx.Capability[trace.Tracer](ac, CapTracer)
		if !ok {
			return ac.ExecuteAction(fn, payload)
		}
		parent := context.Background()
		if get, ok := fluxctx.Capability[func() context.Context](ac, CapTraceContext); ok {
			parent = get()
		}

		_, span := tracer.Start(parent, spanName, trace.WithAttributes(
			attribute.String("isoflux.action", spanName),
		))
		c := ac.ExecuteAction(fn, payload)
		c.Then(func(_ any, err error) {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		})
		return c
	}
}

// TraceContext returns the trace context exposed on v, or
// context.Background when v has none.
func TraceContext(v fluxctx.Getter) context.Context {
	if get, ok := fluxctx.Capability[func() context.Context](v, CapTraceContext); ok {
		return get()
	}
	return context.Background()
}
