package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"github.com/ahrav/go-wuieval/internal/batch"
	"github.com/ahrav/go-wuieval/internal/domain"
	"github.com/ahrav/go-wuieval/internal/export"
	"github.com/ahrav/go-wuieval/internal/worker"
	"github.com/ahrav/go-wuieval/internal/workflow"
)

const progressQueryInterval = time.Second

func runSubmit(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("submit", stderr)
	var urls, files listFlag
	metrics := fs.String("metrics", "", "comma separated metric ids")
	fs.Var(&urls, "url", "URL to evaluate (repeatable)")
	fs.Var(&files, "file", "HTML, ZIP or PNG file to evaluate (repeatable)")
	mailto := fs.Bool("mailto", false, "print a mailto link sharing the result links")
	viaTemporal := fs.Bool("temporal", false, "run the batch as a Temporal workflow (files up to 1 MiB each)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(urls)+len(files) == 0 {
		fmt.Fprintln(stderr, "submit: at least one -url or -file is required")
		return errUsage
	}

	descriptors, err := buildDescriptors(urls, files, splitMetrics(*metrics))
	if err != nil {
		return err
	}

	e, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer e.close()

	var p batch.Progress
	if *viaTemporal {
		p, err = submitWorkflow(ctx, e, descriptors, stderr)
	} else {
		p, err = submitInProcess(ctx, e, descriptors, stderr)
	}
	if err != nil {
		return err
	}
	return report(e, p, *mailto, stdout)
}

func submitInProcess(ctx context.Context, e *env, descriptors []domain.RequestDescriptor, stderr io.Writer) (batch.Progress, error) {
	sink, closeSink, err := worker.InitializeEventSink(ctx, e.cfg.Events, e.logger)
	if err != nil {
		return batch.Progress{}, err
	}
	defer func() { _ = closeSink() }()

	orch := batch.NewOrchestrator(e.client,
		batch.WithEventSink(sink),
		batch.WithLogger(e.logger.With("component", "batch")))
	d := batch.NewDispatcher(batch.NewPending(descriptors...), orch)
	b, _ := d.Trigger(ctx)

	for {
		changed := b.Changed()
		p := b.Progress()
		printProgress(stderr, p)
		if p.Settled {
			return p, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			// Jobs keep running detached; report what settled so far.
			return b.Progress(), ctx.Err()
		}
	}
}

func submitWorkflow(ctx context.Context, e *env, descriptors []domain.RequestDescriptor, stderr io.Writer) (batch.Progress, error) {
	c, err := client.Dial(client.Options{
		HostPort:  e.cfg.Temporal.HostPort,
		Namespace: e.cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(e.logger),
	})
	if err != nil {
		return batch.Progress{}, fmt.Errorf("failed to connect to temporal: %w", err)
	}
	defer c.Close()

	in := workflow.BatchInput{BatchID: uuid.New().String(), Descriptors: descriptors}
	if err := in.Validate(); err != nil {
		return batch.Progress{}, err
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "batch-" + in.BatchID,
		TaskQueue: e.cfg.Temporal.TaskQueue,
	}, workflow.BatchEvaluationWorkflow, in)
	if err != nil {
		return batch.Progress{}, fmt.Errorf("failed to start batch workflow: %w", err)
	}
	e.logger.Info("batch workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	done := make(chan error, 1)
	var out workflow.BatchOutput
	go func() { done <- run.Get(ctx, &out) }()

	ticker := time.NewTicker(progressQueryInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				return batch.Progress{}, fmt.Errorf("batch workflow failed: %w", err)
			}
			p := batch.Progress(out.BatchProgress)
			printProgress(stderr, p)
			return p, nil
		case <-ticker.C:
			v, err := c.QueryWorkflow(ctx, run.GetID(), run.GetRunID(), workflow.QueryProgress)
			if err != nil {
				e.logger.Debug("progress query failed", "error", err)
				continue
			}
			var p workflow.BatchProgress
			if err := v.Get(&p); err == nil {
				printProgress(stderr, batch.Progress(p))
			}
		case <-ctx.Done():
			return batch.Progress{}, ctx.Err()
		}
	}
}

func printProgress(w io.Writer, p batch.Progress) {
	fmt.Fprintf(w, "\rprogress: %3.0f%% (%d/%d done, %d failed)", p.Fraction*100, len(p.Completed), p.Total, p.Failed)
	if p.Settled {
		fmt.Fprintln(w)
	}
}

func report(e *env, p batch.Progress, mailto bool, stdout io.Writer) error {
	if p.Failed > 0 {
		fmt.Fprintf(stdout, "Note: %d request(s) failed!\n", p.Failed)
	}
	if len(p.Completed) == 0 {
		return nil
	}
	body, err := export.BatchBody(e.cfg.ResultBaseURL, p.Completed)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, body)
	if mailto {
		link, err := export.BatchMailto(e.cfg.ResultBaseURL, p.Completed)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, link)
	}
	if len(p.Completed) < p.Total {
		return errors.New("some inputs were not submitted")
	}
	return nil
}
