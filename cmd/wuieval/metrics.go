package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/ahrav/go-wuieval/internal/domain"
)

func runMetrics(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("metrics", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer e.close()

	if fs.NArg() == 1 {
		m, err := e.client.GetMetric(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return printMetrics(stdout, map[string]domain.Metric{fs.Arg(0): m})
	}

	catalog, err := e.client.ListMetrics(ctx)
	if err != nil {
		return err
	}
	return printMetrics(stdout, catalog)
}

func printMetrics(w io.Writer, catalog map[string]domain.Metric) error {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tINPUTS\tDESCRIPTION")
	for _, id := range ids {
		m := catalog[id]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, m.Name, strings.Join(m.AcceptedInput, ","), m.Description)
	}
	return tw.Flush()
}
