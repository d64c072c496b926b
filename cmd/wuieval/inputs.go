package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahrav/go-wuieval/internal/domain"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// splitMetrics parses a comma separated metric list.
func splitMetrics(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// contentTypeOf picks the upload content type from the extension, then from
// the content itself.
func contentTypeOf(path string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// buildDescriptors turns the command line inputs into descriptors, URLs first,
// each with the same metric selection.
func buildDescriptors(urls, files []string, metricIDs []string) ([]domain.RequestDescriptor, error) {
	out := make([]domain.RequestDescriptor, 0, len(urls)+len(files))
	for _, u := range urls {
		d, err := domain.NewURLDescriptor(u, metricIDs)
		if err != nil {
			return nil, fmt.Errorf("url %s: %w", u, err)
		}
		out = append(out, d)
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		d, err := domain.NewFileDescriptor(filepath.Base(path), contentTypeOf(path, data), data, metricIDs)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", path, err)
		}
		out = append(out, d)
	}
	return out, nil
}
