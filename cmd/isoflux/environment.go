package main

import (
	"context"
	"fmt"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/dshills/isoflux/internal/app"
	"github.com/dshills/isoflux/internal/config"
	"github.com/dshills/isoflux/internal/logging"
	"github.com/dshills/isoflux/internal/plugins/dimensions"
	"github.com/dshills/isoflux/internal/plugins/luaplugin"
	"github.com/dshills/isoflux/internal/plugins/tracing"
	"github.com/dshills/isoflux/internal/snapshot"
)

// environment is the application assembled from a configuration.
type environment struct {
	app         *app.Application
	snapshotDir string
	provider    *sdktrace.TracerProvider
	logger      *logging.Logger
}

func newEnvironment(cfg *config.Config, logger *logging.Logger) (*environment, error) {
	env := &environment{
		snapshotDir: cfg.Snapshot.Dir,
		logger:      logger,
	}

	plugins, err := env.plugins(cfg)
	if err != nil {
		return nil, err
	}

	dc := cfg.DispatcherConfig()
	a, err := app.New(app.Options{
		Plugins:    plugins,
		Stores:     []app.Store{{Name: todoStoreName, Factory: newTodoStore}},
		Dispatcher: &dc,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	env.app = a
	return env, nil
}

func (env *environment) plugins(cfg *config.Config) ([]app.Plugin, error) {
	var plugins []app.Plugin
	for i, spec := range cfg.Plugins {
		switch spec.Kind {
		case config.KindDimensions:
			plugins = append(plugins, dimensions.NewApp(dimensions.Dimensions(spec.Dimensions)))
		case config.KindLua:
			script, err := luaplugin.CompileFile(spec.Path,
				luaplugin.WithLogger(env.logger),
				luaplugin.WithTimeout(cfg.Lua.Timeout),
			)
			if err != nil {
				return nil, fmt.Errorf("plugins[%d]: %w", i, err)
			}
			plugins = append(plugins, script.App())
		case config.KindTracing:
			if env.provider == nil {
				env.provider = sdktrace.NewTracerProvider(
					sdktrace.WithSyncer(&logExporter{logger: env.logger.WithComponent("trace")}),
					sdktrace.WithSampler(sdktrace.AlwaysSample()),
				)
			}
			plugins = append(plugins, tracing.NewApp(tracing.WithTracerProvider(env.provider)))
		default:
			return nil, fmt.Errorf("plugins[%d]: unknown kind %q", i, spec.Kind)
		}
	}
	return plugins, nil
}

// snapshots opens the snapshot directory, creating it if needed.
func (env *environment) snapshots() (*snapshot.FileStore, error) {
	return snapshot.NewFileStore(env.snapshotDir)
}

func (env *environment) shutdown(ctx context.Context) error {
	if env.provider == nil {
		return nil
	}
	return env.provider.Shutdown(ctx)
}

// logExporter writes finished spans to the logger.
type logExporter struct {
	logger *logging.Logger
}

func (e *logExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.logger.Debug("span %s trace=%s duration=%s status=%s",
			s.Name(),
			s.SpanContext().TraceID(),
			s.EndTime().Sub(s.StartTime()).Round(time.Microsecond),
			s.Status().Code,
		)
	}
	return nil
}

func (e *logExporter) Shutdown(context.Context) error { return nil }
