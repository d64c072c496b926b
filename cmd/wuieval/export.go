package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ahrav/go-wuieval/internal/export"
)

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("export", stderr)
	outDir := fs.String("out", ".", "directory receiving <input-id>.json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "export: exactly one input id is required")
		return errUsage
	}
	inputID := fs.Arg(0)

	e, err := setup(ctx, *configPath, stderr)
	if err != nil {
		return err
	}
	defer e.close()

	results, err := e.client.FetchResults(ctx, inputID)
	if err != nil {
		return err
	}

	path := filepath.Join(*outDir, export.DownloadName(inputID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteJSON(f, results); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d result(s) to %s\n", len(results), path)
	return nil
}
