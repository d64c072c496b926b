package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ahrav/go-wuieval/internal/domain"
	"github.com/ahrav/go-wuieval/internal/export"
	"github.com/ahrav/go-wuieval/internal/poller"
	"github.com/ahrav/go-wuieval/internal/worker"
)

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("watch", stderr)
	interval := fs.Duration("interval", 0, "poll interval (default from config)")
	maxAttempts := fs.Int("max-attempts", -1, "give up after this many polls (0 polls forever)")
	share := fs.Bool("mailto", false, "print a mailto link for the result once converged")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "watch: exactly one input id is required")
		return errUsage
	}
	inputID := fs.Arg(0)

	e, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.cfg.Poll
	if *interval > 0 {
		cfg.Interval = *interval
	}
	if *maxAttempts >= 0 {
		cfg.MaxAttempts = *maxAttempts
	}

	sink, closeSink, err := worker.InitializeEventSink(ctx, e.cfg.Events, e.logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeSink() }()

	updates := make(chan []domain.MetricResult, 1)
	p := poller.New(e.client, cfg,
		poller.WithEventSink(sink),
		poller.WithLogger(e.logger.With("component", "poller")),
		poller.WithOnUpdate(func(_ string, results []domain.MetricResult) {
			select {
			case updates <- results:
			default:
			}
		}))

	s, err := p.Open(ctx, inputID)
	if err != nil {
		return err
	}
	defer s.Close()
	target := s.Target()

	fmt.Fprintf(stdout, "%s: %d metric(s) requested\n", s.Metadata().Name, target.ExpectedCount)
	printStatuses(stdout, s.Statuses())

	for {
		select {
		case <-updates:
			printStatuses(stdout, s.Statuses())
		case <-s.Done():
			return finishWatch(e, s, *share, stdout)
		case <-ctx.Done():
			s.Close()
			fmt.Fprintf(stdout, "stopped after %d poll(s): %d/%d ready\n", s.Ticks(), s.Observed(), target.ExpectedCount)
			return nil
		}
	}
}

func finishWatch(e *env, s *poller.Session, share bool, stdout io.Writer) error {
	printStatuses(stdout, s.Statuses())
	fmt.Fprintf(stdout, "%s after %d poll(s)\n", s.State(), s.Ticks())
	if s.State() != poller.StateConverged || !share {
		return nil
	}
	link, err := export.ResultLink(e.cfg.ResultBaseURL, s.Target().InputID)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, export.SingleMailto(link))
	return nil
}

func printStatuses(w io.Writer, statuses []domain.MetricStatus) {
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		state := "computing"
		if st.Ready {
			state = "ready"
		}
		parts[i] = st.MetricID + "=" + state
	}
	fmt.Fprintln(w, strings.Join(parts, " "))
}
