// Package main is the entry point for the isoflux command.
//
// isoflux assembles an application from a configuration file, runs a demo
// todo list through a context and moves the result through snapshots:
//
//	isoflux demo -key session1 "buy milk" "walk dog"
//	isoflux inspect snapshots/session1.json
//	isoflux rehydrate snapshots/session1.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/isoflux/internal/config"
	"github.com/dshills/isoflux/internal/logging"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	logLevel    string
	showVersion bool
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "isoflux %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if opts.logLevel != "" {
		if !logging.ValidLevel(opts.logLevel) {
			fmt.Fprintf(stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.logLevel)
			return 1
		}
		cfg.Log.Level = opts.logLevel
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel(),
		Output: stderr,
		Prefix: "isoflux",
	})

	// Cancel in-flight snapshot I/O on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := newEnvironment(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer func() {
		if err := env.shutdown(context.Background()); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}()

	if err := dispatch(ctx, env, rest, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (options, []string, error) {
	var opts options
	fs := flag.NewFlagSet("isoflux", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.BoolVar(&opts.showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "isoflux - isomorphic application contexts\n\n")
		fmt.Fprintf(stderr, "Usage: isoflux [options] <command> [args...]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  demo [-key name] [items...]   Run the todo demo and print its snapshot\n")
		fmt.Fprintf(stderr, "  inspect <file> | -key name    Print a snapshot and its contents\n")
		fmt.Fprintf(stderr, "  rehydrate <file> | -key name  Restore a context from a snapshot\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

func dispatch(ctx context.Context, env *environment, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		args = []string{"demo"}
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "demo":
		return runDemo(ctx, env, rest, stdout)
	case "inspect":
		return runInspect(ctx, env, rest, stdout)
	case "rehydrate":
		return runRehydrate(ctx, env, rest, stdout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
