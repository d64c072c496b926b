// Command wuieval-stub serves an in-memory stand-in for the evaluation
// service and result store. Metrics complete one by one after the configured
// compute delay.
//
// Usage:
//
//	wuieval-stub -addr :8000 -delay 2s
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahrav/go-wuieval/internal/config"
	"github.com/ahrav/go-wuieval/internal/evalstub"
	"github.com/ahrav/go-wuieval/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address (default from config)")
	delay := flag.Duration("delay", -1, "delay between two metric completions (default from config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *addr, *delay); err != nil {
		fmt.Fprintf(os.Stderr, "wuieval-stub: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, addr string, delay time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Stub.Addr = addr
	}
	if delay >= 0 {
		cfg.Stub.ComputeDelay = delay
	}

	logger, err := observability.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	stub := evalstub.New(
		evalstub.WithComputeDelay(cfg.Stub.ComputeDelay),
		evalstub.WithLogger(logger.With("component", "evalstub")),
	)
	defer stub.Close()

	srv := &http.Server{
		Addr:              cfg.Stub.Addr,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub listening", "addr", cfg.Stub.Addr, "compute_delay", cfg.Stub.ComputeDelay)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
