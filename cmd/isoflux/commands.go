package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/isoflux/internal/dispatcher"
	"github.com/dshills/isoflux/internal/fluxctx"
	"github.com/dshills/isoflux/internal/plugins/dimensions"
	"github.com/dshills/isoflux/internal/plugins/tracing"
	"github.com/dshills/isoflux/internal/snapshot"
)

var defaultTodos = []string{"write the store", "dehydrate on the server", "rehydrate on the client"}

func runDemo(ctx context.Context, env *environment, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	key := fs.String("key", "", "Save the snapshot under this key in the snapshot directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	items := fs.Args()
	if len(items) == 0 {
		items = defaultTodos
	}

	c := env.app.CreateContext()
	defer closeContext(env, c)

	if p, ok := c.Plugin(tracing.Name); ok {
		span := p.(*tracing.Plugin).Start("isoflux.demo")
		defer span.End()
	}

	ac := c.ActionContext()
	for _, item := range items {
		if _, err := ac.ExecuteAction(addTodo, item).Await(ctx); err != nil {
			return fmt.Errorf("add %q: %w", item, err)
		}
	}
	if _, err := ac.ExecuteAction(toggleTodo, 0).Await(ctx); err != nil {
		return fmt.Errorf("toggle: %w", err)
	}

	snap, err := c.Dehydrate()
	if err != nil {
		return err
	}
	if *key != "" {
		store, err := env.snapshots()
		if err != nil {
			return err
		}
		if err := store.Save(ctx, *key, snap); err != nil {
			return err
		}
		env.logger.Info("saved snapshot %s to %s", *key, store.Dir())
	}

	out, err := snapshot.Pretty(snap)
	if err != nil {
		return err
	}
	if _, err := stdout.Write(out); err != nil {
		return err
	}

	if m := env.app.Dispatcher().Metrics(); m != nil {
		printMetrics(stdout, m.Snapshot())
	}
	return nil
}

func printMetrics(w io.Writer, stats []dispatcher.ActionMetrics) {
	for _, am := range stats {
		fmt.Fprintf(w, "dispatch %s: %d dispatches, %d handler calls, %d errors, %d panics, avg %s, max %s\n",
			am.Name, am.Dispatches, am.Handlers, am.Errors, am.Panics,
			am.Average().Round(time.Microsecond), am.Max.Round(time.Microsecond))
	}
}

func runInspect(ctx context.Context, env *environment, args []string, stdout io.Writer) error {
	snap, err := loadSnapshot(ctx, env, "inspect", args)
	if err != nil {
		return err
	}
	out, err := snapshot.Pretty(snap)
	if err != nil {
		return err
	}
	if _, err := stdout.Write(out); err != nil {
		return err
	}

	var stores []string
	gjson.GetBytes(snap.Dispatcher, "stores").ForEach(func(k, _ gjson.Result) bool {
		stores = append(stores, k.String())
		return true
	})
	plugins := make([]string, 0, len(snap.Plugins))
	for name := range snap.Plugins {
		plugins = append(plugins, name)
	}
	slices.Sort(plugins)

	fmt.Fprintf(stdout, "stores: %s\n", joinOrNone(stores))
	fmt.Fprintf(stdout, "plugins: %s\n", joinOrNone(plugins))
	return nil
}

func runRehydrate(ctx context.Context, env *environment, args []string, stdout io.Writer) error {
	snap, err := loadSnapshot(ctx, env, "rehydrate", args)
	if err != nil {
		return err
	}

	var c *fluxctx.Context
	env.app.Rehydrate(snap, func(rerr error, rc *fluxctx.Context) {
		err, c = rerr, rc
	})
	if err != nil {
		return err
	}
	defer closeContext(env, c)

	fmt.Fprintf(stdout, "context %s\n", c.ID())
	items, err := todos(c.StoreContext())
	if err != nil {
		return err
	}
	for i, t := range items {
		mark := " "
		if t.Done {
			mark = "x"
		}
		fmt.Fprintf(stdout, "%d. [%s] %s\n", i, mark, t.Text)
	}
	if dims := dimensions.Get(c.ComponentContext()); len(dims) > 0 {
		fmt.Fprintf(stdout, "dimensions: %v\n", dims)
	}
	return nil
}

// loadSnapshot reads the snapshot named by args: either a file path or
// -key naming a snapshot in the snapshot directory.
func loadSnapshot(ctx context.Context, env *environment, name string, args []string) (*snapshot.Snapshot, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	key := fs.String("key", "", "Load the snapshot stored under this key")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *key != "" {
		store, err := env.snapshots()
		if err != nil {
			return nil, err
		}
		return store.Load(ctx, *key)
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("%s: expected a snapshot file or -key", name)
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return nil, err
	}
	return snapshot.Parse(data)
}

func closeContext(env *environment, c *fluxctx.Context) {
	if err := c.Close(); err != nil {
		env.logger.Warn("close context %s: %v", c.ID(), err)
	}
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return strings.Join(s, ", ")
}
