// Package export renders evaluation results for sharing: result links, mailto
// URIs for a batch or a single result, and JSON downloads.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/ahrav/go-wuieval/internal/domain"
)

const (
	nameColumnWidth = 60
	typeColumnWidth = 15
	linkColumnWidth = 100

	batchSubject  = "WUI Evaluation results links"
	singleSubject = "URL for Evaluation result"
	batchIntro    = "Here are the evaluation result links:\n\n"
)

// ErrEmptyResultID indicates a link requested for a handle without id.
var ErrEmptyResultID = errors.New("result id is required")

// ResultLink joins the result page base URL and a result id.
func ResultLink(base, resultID string) (string, error) {
	if resultID == "" {
		return "", ErrEmptyResultID
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid result base url %q: %w", base, err)
	}
	return u.JoinPath(resultID).String(), nil
}

// BatchBody renders the plain text table listing every handle with its link.
// Rows follow the given order.
func BatchBody(base string, handles []domain.ResultHandle) (string, error) {
	var b strings.Builder
	b.WriteString(batchIntro)
	b.WriteString(padRight("WUI Name", nameColumnWidth))
	b.WriteString(padRight("WUI Type", typeColumnWidth))
	b.WriteString("Links\n")
	b.WriteString(strings.Repeat("-", nameColumnWidth+typeColumnWidth+linkColumnWidth))
	b.WriteByte('\n')

	for _, h := range handles {
		link, err := ResultLink(base, h.ResultID)
		if err != nil {
			return "", err
		}
		b.WriteString(padRight(h.DisplayName, nameColumnWidth))
		b.WriteString(padRight(string(h.Kind), typeColumnWidth))
		b.WriteString(link)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// BatchMailto returns a mailto URI sharing the links of a batch.
func BatchMailto(base string, handles []domain.ResultHandle) (string, error) {
	body, err := BatchBody(base, handles)
	if err != nil {
		return "", err
	}
	return mailto(batchSubject, body), nil
}

// SingleMailto returns a mailto URI sharing one result link.
func SingleMailto(link string) string { return mailto(singleSubject, link) }

// WriteJSON writes the result records of one input as indented JSON.
func WriteJSON(w io.Writer, results []domain.MetricResult) error {
	if results == nil {
		results = []domain.MetricResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

// DownloadName is the file name of an input's JSON export.
func DownloadName(inputID string) string { return inputID + ".json" }

func mailto(subject, body string) string {
	return "mailto:?subject=" + escape(subject) + "&body=" + escape(body)
}

// escape percent-encodes s for a mailto header value. Spaces become %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func padRight(s string, width int) string {
	if n := width - len([]rune(s)); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
