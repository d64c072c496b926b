// Command wuieval submits inputs to the WUI evaluation service and follows
// their results.
//
// Usage:
//
//	wuieval submit -metrics m1,m3 -url https://example.com -file page.html
//	wuieval submit -metrics m1 -url https://example.com -temporal
//	wuieval watch <input-id>
//	wuieval export [-out dir] <input-id>
//	wuieval metrics [metric-id]
//
// Every subcommand accepts -config <file>; WUIEVAL_* variables override it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahrav/go-wuieval/internal/config"
	"github.com/ahrav/go-wuieval/internal/evalclient"
	"github.com/ahrav/go-wuieval/internal/observability"
)

const usage = `usage: wuieval <command> [flags]

commands:
  submit   submit URLs and files for evaluation
  watch    wait until every requested metric of an input has a result
  export   download the results of an input as JSON
  metrics  list the metric catalog
`

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1], os.Args[2:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "wuieval: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, stdout, stderr io.Writer) error {
	switch cmd {
	case "submit":
		return runSubmit(ctx, args, stdout, stderr)
	case "watch":
		return runWatch(ctx, args, stdout, stderr)
	case "export":
		return runExport(ctx, args, stdout, stderr)
	case "metrics":
		return runMetrics(ctx, args, stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return errUsage
	}
}

// env is what every subcommand needs once flags are parsed.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *evalclient.Client
	shutdown observability.ShutdownFunc
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	return fs, configPath
}

func setup(ctx context.Context, configPath string, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.Log, stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	shutdown, err := observability.SetupTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return nil, err
	}
	client, err := evalclient.New(cfg.Service, evalclient.WithLogger(logger.With("component", "evalclient")))
	if err != nil {
		_ = observability.Shutdown(shutdown, logger)
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, client: client, shutdown: shutdown}, nil
}

func (e *env) close() { _ = observability.Shutdown(e.shutdown, e.logger) }
