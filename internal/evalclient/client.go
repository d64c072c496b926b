// Package evalclient is the HTTP adapter for the evaluation service and its
// result store.
//
// It implements batch.Submitter and poller.ResultStore. Calls are never
// retried; each runs in its own trace span.
package evalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-wuieval/internal/domain"
)

// DefaultBaseURL is where a locally started evaluation service listens.
const DefaultBaseURL = "http://localhost:8000/api"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Config holds the client settings.
type Config struct {
	BaseURL string `json:"base_url" yaml:"base_url" validate:"required,url"`

	// Timeout bounds a single call. Zero means no client-side timeout;
	// URL submissions wait for a page capture and can take long.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"min=0"`
}

// DefaultConfig returns the local service address with no timeout.
func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL}
}

// Client calls the evaluation service.
type Client struct {
	base   *url.URL
	http   *http.Client
	tracer trace.Tracer
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer("wuieval/evalclient") }
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", cfg.BaseURL)
	}
	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: cfg.Timeout},
		tracer: otel.Tracer("wuieval/evalclient"),
		logger: slog.Default().With("component", "evalclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type urlInput struct {
	URL     string   `json:"url"`
	Metrics []string `json:"metrics"`
}

type metricKeys struct {
	Metrics []string `json:"metrics"`
}

type metricsResponse struct {
	Metrics map[string]domain.Metric `json:"metrics"`
}

// SubmitURLEvaluation asks the service to capture and evaluate rawURL.
func (c *Client) SubmitURLEvaluation(ctx context.Context, rawURL string, metricIDs []string) (domain.ResultHandle, error) {
	ctx, span := c.tracer.Start(ctx, "evalclient.SubmitURLEvaluation",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("input.url", rawURL),
			attribute.Int("input.metrics", len(metricIDs)),
		))
	defer span.End()

	body, err := json.Marshal(urlInput{URL: rawURL, Metrics: nonNil(metricIDs)})
	if err != nil {
		return domain.ResultHandle{}, fail(span, fmt.Errorf("failed to encode url input: %w", err))
	}

	var h domain.ResultHandle
	if err := c.do(ctx, http.MethodPost, "evaluate_url_input", bytes.NewReader(body), "application/json", &h); err != nil {
		return domain.ResultHandle{}, fail(span, err)
	}
	span.SetAttributes(attribute.String("result.id", h.ResultID))
	return h, nil
}

// SubmitFileEvaluation uploads file for evaluation. The file's content type
// is sent with the part and decides how the service renders it.
func (c *Client) SubmitFileEvaluation(ctx context.Context, file domain.FilePayload, metricIDs []string) (domain.ResultHandle, error) {
	ctx, span := c.tracer.Start(ctx, "evalclient.SubmitFileEvaluation",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("input.file", file.Name),
			attribute.String("input.content_type", file.ContentType),
			attribute.Int("input.bytes", len(file.Data)),
			attribute.Int("input.metrics", len(metricIDs)),
		))
	defer span.End()

	body, contentType, err := encodeFileInput(file, metricIDs)
	if err != nil {
		return domain.ResultHandle{}, fail(span, err)
	}

	var h domain.ResultHandle
	if err := c.do(ctx, http.MethodPost, "evaluate_file_input", body, contentType, &h); err != nil {
		return domain.ResultHandle{}, fail(span, err)
	}
	span.SetAttributes(attribute.String("result.id", h.ResultID))
	return h, nil
}

// FetchResults returns the metric results stored so far for an input.
func (c *Client) FetchResults(ctx context.Context, inputID string) ([]domain.MetricResult, error) {
	ctx, span := c.startGet(ctx, "evalclient.FetchResults", inputID)
	defer span.End()

	var out []domain.MetricResult
	if err := c.do(ctx, http.MethodGet, "result/"+url.PathEscape(inputID), nil, "", &out); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("result.count", len(out)))
	return out, nil
}

// FetchInputMetadata returns what the store keeps about an input, including
// the metrics it requested.
func (c *Client) FetchInputMetadata(ctx context.Context, inputID string) (domain.InputMetadata, error) {
	ctx, span := c.startGet(ctx, "evalclient.FetchInputMetadata", inputID)
	defer span.End()

	var meta domain.InputMetadata
	if err := c.do(ctx, http.MethodGet, "data/"+url.PathEscape(inputID), nil, "", &meta); err != nil {
		return domain.InputMetadata{}, fail(span, err)
	}
	return meta, nil
}

// ListMetrics returns the service's metric catalog keyed by metric id.
func (c *Client) ListMetrics(ctx context.Context) (map[string]domain.Metric, error) {
	ctx, span := c.tracer.Start(ctx, "evalclient.ListMetrics", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var resp metricsResponse
	if err := c.do(ctx, http.MethodGet, "metrics", nil, "", &resp); err != nil {
		return nil, fail(span, err)
	}
	return resp.Metrics, nil
}

// GetMetric returns one catalog entry.
func (c *Client) GetMetric(ctx context.Context, metricID string) (domain.Metric, error) {
	ctx, span := c.tracer.Start(ctx, "evalclient.GetMetric",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("metric.id", metricID)))
	defer span.End()

	var m domain.Metric
	if err := c.do(ctx, http.MethodGet, "metrics/"+url.PathEscape(metricID), nil, "", &m); err != nil {
		return domain.Metric{}, fail(span, err)
	}
	return m, nil
}

func (c *Client) startGet(ctx context.Context, name, inputID string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("input.id", inputID)))
}

// do sends one request to base/path and decodes a 2xx JSON answer into out.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	endpoint := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "evaluation service call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(method, path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	e := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var detail struct {
		Detail any `json:"detail"`
	}
	switch {
	case json.Unmarshal(raw, &detail) == nil && detail.Detail != nil:
		if s, ok := detail.Detail.(string); ok {
			e.Detail = s
		} else {
			b, _ := json.Marshal(detail.Detail)
			e.Detail = string(b)
		}
	default:
		e.Detail = strings.TrimSpace(string(raw))
	}
	return e
}

func encodeFileInput(file domain.FilePayload, metricIDs []string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}

	keys, err := json.Marshal(metricKeys{Metrics: nonNil(metricIDs)})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode metrics: %w", err)
	}
	if err := mw.WriteField("metrics", string(keys)); err != nil {
		return nil, "", fmt.Errorf("failed to write metrics field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
