package evalclient

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/go-wuieval/internal/batch"
	"github.com/ahrav/go-wuieval/internal/domain"
	"github.com/ahrav/go-wuieval/internal/evalstub"
	"github.com/ahrav/go-wuieval/internal/poller"
)

var (
	_ batch.Submitter    = (*Client)(nil)
	_ poller.ResultStore = (*Client)(nil)
)

func newStubClient(t *testing.T, opts ...evalstub.Option) (*Client, *evalstub.Server, *tracetest.InMemoryExporter) {
	t.Helper()
	stub := evalstub.New(opts...)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(func() {
		srv.Close()
		stub.Close()
	})

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, err := New(Config{BaseURL: srv.URL + "/api"}, WithHTTPClient(srv.Client()), WithTracerProvider(tp))
	require.NoError(t, err)
	return c, stub, exp
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "/relative/api"})
	assert.Error(t, err)

	c, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.base.String())
}

func TestClient_SubmitURLAndPoll(t *testing.T) {
	c, stub, exp := newStubClient(t)
	ctx := context.Background()

	h, err := c.SubmitURLEvaluation(ctx, "https://example.com", []string{"m1", "m8"})
	require.NoError(t, err)
	require.NoError(t, h.Validate())
	assert.Equal(t, "https://example.com", h.DisplayName)
	assert.Equal(t, domain.InputURL, h.Kind)

	meta, err := c.FetchInputMetadata(ctx, h.ResultID)
	require.NoError(t, err)
	assert.Equal(t, h.ResultID, meta.ID)
	assert.Equal(t, []string{"m1", "m8"}, meta.MetricsRequested)
	assert.False(t, meta.CreatedAt.IsZero())

	results, err := c.FetchResults(ctx, h.ResultID)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.True(t, stub.Complete(h.ResultID, "m8", "412"))
	results, err = c.FetchResults(ctx, h.ResultID)
	require.NoError(t, err)
	assert.Equal(t, []domain.MetricResult{{MetricID: "m8", Results: []string{"412"}}}, results)

	spans := exp.GetSpans()
	require.Len(t, spans, 4)
	assert.Equal(t, "evalclient.SubmitURLEvaluation", spans[0].Name)
	assert.Equal(t, "evalclient.FetchInputMetadata", spans[1].Name)
}

func TestClient_SubmitFileKinds(t *testing.T) {
	c, _, _ := newStubClient(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		file        domain.FilePayload
		want        domain.InputKind
		wantErr     error
		errContains string
	}{
		{
			name: "png screenshot",
			file: domain.FilePayload{Name: "shot.png", ContentType: "image/png", Data: []byte("\x89PNG")},
			want: domain.InputPNG,
		},
		{
			name: "html page",
			file: domain.FilePayload{Name: "page.html", ContentType: "text/html; charset=utf-8", Data: []byte("<html></html>")},
			want: domain.InputHTML,
		},
		{
			name: "zip bundle",
			file: domain.FilePayload{Name: "site.zip", ContentType: "application/zip", Data: zipWith(t, "index.html")},
			want: domain.InputZIP,
		},
		{
			name:        "zip without index",
			file:        domain.FilePayload{Name: "bad.zip", ContentType: "application/zip", Data: zipWith(t, "about.html")},
			wantErr:     ErrClient,
			errContains: "index.html not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := c.SubmitFileEvaluation(ctx, tt.file, []string{"m1"})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorContains(t, err, tt.errContains)
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusBadRequest, se.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.Kind)
			assert.Equal(t, tt.file.Name, h.DisplayName)
		})
	}
}

func TestClient_MultipartWireFormat(t *testing.T) {
	var (
		gotMetrics     string
		gotContentType string
		gotName        string
		gotData        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/evaluate_file_input", r.URL.Path)
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if !assert.NoError(t, err) {
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if !assert.NoError(t, err) {
				return
			}
			data, _ := io.ReadAll(p)
			switch p.FormName() {
			case "file":
				gotName = p.FileName()
				gotContentType = p.Header.Get("Content-Type")
				gotData = data
			case "metrics":
				gotMetrics = string(data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"wui_name":"a.html","result_id":"42","wui_type":"html"}`)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/api/"})
	require.NoError(t, err)

	h, err := c.SubmitFileEvaluation(context.Background(),
		domain.FilePayload{Name: "a.html", ContentType: "text/html", Data: []byte("<p>hi</p>")},
		[]string{"m1", "m13"})
	require.NoError(t, err)

	assert.Equal(t, domain.ResultHandle{ResultID: "42", DisplayName: "a.html", Kind: domain.InputHTML}, h)
	assert.Equal(t, "a.html", gotName)
	assert.Equal(t, "text/html", gotContentType)
	assert.Equal(t, []byte("<p>hi</p>"), gotData)
	assert.JSONEq(t, `{"metrics":["m1","m13"]}`, gotMetrics)
}

func TestClient_StatusErrors(t *testing.T) {
	c, _, exp := newStubClient(t, evalstub.WithRejection("https://down.example.com", http.StatusInternalServerError))
	ctx := context.Background()

	_, err := c.SubmitURLEvaluation(ctx, "https://down.example.com", []string{"m1"})
	require.ErrorIs(t, err, ErrServer)
	assert.ErrorContains(t, err, "screenshot capture failed")

	_, err = c.FetchInputMetadata(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.FetchResults(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.GetMetric(ctx, "m404")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, span := range exp.GetSpans() {
		assert.Equal(t, codes.Error, span.Status.Code, span.Name)
	}
}

func TestClient_Catalog(t *testing.T) {
	c, _, _ := newStubClient(t)
	ctx := context.Background()

	catalog, err := c.ListMetrics(ctx)
	require.NoError(t, err)
	assert.Contains(t, catalog, "m1")
	assert.True(t, catalog["m8"].Accepts(domain.InputHTML))
	assert.False(t, catalog["m8"].Accepts(domain.InputPNG))

	m, err := c.GetMetric(ctx, "m3")
	require.NoError(t, err)
	assert.Equal(t, "Colorfulness", m.Name)
}

func TestClient_DrivesOrchestrator(t *testing.T) {
	c, _, _ := newStubClient(t, evalstub.WithRejection("broken.png", http.StatusInternalServerError))

	url, err := domain.NewURLDescriptor("https://example.com", []string{"m1", "m3"})
	require.NoError(t, err)
	file, err := domain.NewFileDescriptor("broken.png", "image/png", []byte("\x89PNG"), []string{"m1"})
	require.NoError(t, err)

	b := batch.NewOrchestrator(c).Dispatch(context.Background(), []domain.RequestDescriptor{url, file})
	p, err := b.Wait(context.Background())
	require.NoError(t, err)

	assert.Len(t, p.Completed, 1)
	assert.Equal(t, 1, p.Failed)
	assert.True(t, p.Settled)
}

func TestStatusError_Classification(t *testing.T) {
	assert.ErrorIs(t, &StatusError{StatusCode: 404}, ErrNotFound)
	assert.ErrorIs(t, &StatusError{StatusCode: 422}, ErrClient)
	assert.ErrorIs(t, &StatusError{StatusCode: 503}, ErrServer)
	assert.Equal(t, "GET result/x: 500 Internal Server Error: boom",
		(&StatusError{Method: "GET", Path: "result/x", StatusCode: 500, Detail: "boom"}).Error())
}

func zipWith(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte("<html></html>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
