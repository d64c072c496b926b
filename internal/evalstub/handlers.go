package evalstub

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ahrav/go-wuieval/internal/domain"
)

const maxUploadBytes = 32 << 20

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

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleListMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, metricsResponse{Metrics: s.catalog})
}

func (s *Server) handleGetMetric(w http.ResponseWriter, r *http.Request) {
	m, ok := s.catalog[chi.URLParam(r, "metric_id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Metric not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// POST /api/evaluate_url_input
func (s *Server) handleEvaluateURL(w http.ResponseWriter, r *http.Request) {
	var req urlInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusUnprocessableEntity, "url is required")
		return
	}
	if status, ok := s.reject[req.URL]; ok {
		writeError(w, status, "screenshot capture failed")
		return
	}
	writeJSON(w, http.StatusOK, s.store(req.URL, domain.InputURL, req.Metrics))
}

// POST /api/evaluate_file_input, multipart with "file" and "metrics" fields.
// The uploaded part's content type decides the input kind.
func (s *Server) handleEvaluateFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid multipart body")
		return
	}
	var keys metricKeys
	if err := json.Unmarshal([]byte(r.FormValue("metrics")), &keys); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "metrics must be a JSON object")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	if status, ok := s.reject[header.Filename]; ok {
		writeError(w, status, "file evaluation failed")
		return
	}

	payload := domain.FilePayload{Name: header.Filename, ContentType: header.Header.Get("Content-Type")}
	kind := payload.InputKind()
	if kind == domain.InputZIP {
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		if !hasIndexHTML(data) {
			writeError(w, http.StatusBadRequest, "index.html not found in the ZIP file")
			return
		}
	}
	writeJSON(w, http.StatusOK, s.store(header.Filename, kind, keys.Metrics))
}

// GET /api/data/{wui_id}
func (s *Server) handleInputData(w http.ResponseWriter, r *http.Request) {
	meta, _, ok := s.lookup(chi.URLParam(r, "wui_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "WUI not found")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// GET /api/result/{wui_id}
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	_, results, ok := s.lookup(chi.URLParam(r, "wui_id"))
	if !ok {
		writeError(w, http.StatusNotFound, "WUI not found")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func hasIndexHTML(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.TrimPrefix(f.Name, "./") == "index.html" {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
