package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/document-intake/internal/core/ports"
	"github.com/kirillkom/document-intake/internal/observability/metrics"
)

const (
	fileField      = "file"
	defaultMaxBody = 32 << 20
)

type Options struct {
	Service               string
	Policy                string
	UnsupportedTypeStatus int
	MaxUploadBytes        int64

	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueWait      time.Duration

	Metrics *metrics.IntakeMetrics
}

type Router struct {
	analyzer ports.DocumentAnalyzer
	opts     Options
	openAPI  *openapi3.T
}

func NewRouter(ctx context.Context, analyzer ports.DocumentAnalyzer, opts Options) (*Router, error) {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.UnsupportedTypeStatus == 0 {
		opts.UnsupportedTypeStatus = http.StatusOK
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxBody
	}
	doc, err := loadOpenAPI(ctx)
	if err != nil {
		return nil, err
	}
	return &Router{analyzer: analyzer, opts: opts, openAPI: doc}, nil
}

func (rt *Router) Handler() http.Handler {
	analyze := backpressureMiddleware(
		rateLimitMiddleware(http.HandlerFunc(rt.analyzeDocument), rt.opts.RateLimitRPS, rt.opts.RateLimitBurst),
		rt.opts.MaxInFlight,
		rt.opts.QueueWait,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.json", rt.openAPIDocument)
	mux.Handle("/analyze_document", analyze)
	mux.Handle("/v1/documents/analyze", analyze)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		mux.Handle("/metrics", rt.opts.Metrics.Handler())
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(recoverMiddleware(handler)))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.openAPI)
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)

	part, err := findFilePart(r)
	if err != nil {
		status, body, outcome := rt.uploadErrorBody(err)
		rt.record(outcome, "", start)
		writeJSON(w, status, body)
		return
	}
	defer part.Close()

	filename := part.FileName()
	if filename == "" {
		rt.record("invalid", "", start)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgNoSelectedFile})
		return
	}

	outcome, err := rt.analyzer.Analyze(r.Context(), filename, part)
	if err != nil {
		status, body, label := analyzeErrorBody(err, rt.opts.UnsupportedTypeStatus)
		logAttrs := []any{
			"request_id", requestIDFromContext(r),
			"filename", filename,
			"status", status,
			"error", err.Error(),
		}
		if status >= http.StatusInternalServerError {
			slog.Error("analyze.failed", logAttrs...)
		} else {
			slog.Warn("analyze.rejected", logAttrs...)
		}
		rt.record(label, "", start)
		writeJSON(w, status, body)
		return
	}

	if outcome.Failure != nil {
		slog.Warn("analyze.model_error",
			"request_id", requestIDFromContext(r),
			"filename", filename,
			"error", outcome.Failure.Error,
			"details", outcome.Failure.Details,
		)
		rt.record("model_error", string(outcome.Failure.PredictedCategory), start)
		writeJSON(w, http.StatusOK, outcome.Failure)
		return
	}

	resp := outcome.Response
	slog.Info("analyze.ok",
		"request_id", requestIDFromContext(r),
		"filename", filename,
		"category", string(resp.PredictedCategory),
		"action_items", len(resp.ExtractedActionItems),
	)
	rt.record("ok", string(resp.PredictedCategory), start)
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) uploadErrorBody(err error) (int, errorResponse, string) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge, errorResponse{Error: msgUploadTooLarge}, "invalid"
	}
	return http.StatusBadRequest, errorResponse{Error: msgNoFilePart}, "invalid"
}

func (rt *Router) record(outcome, category string, start time.Time) {
	if rt.opts.Metrics == nil {
		return
	}
	rt.opts.Metrics.RecordAnalysis(rt.opts.Service, rt.opts.Policy, outcome, category, time.Since(start))
}

var errNoFilePart = errors.New("multipart field 'file' is missing")

// findFilePart streams the multipart body up to the first part named "file".
// A part with an empty filename is returned as is; callers reject it.
func findFilePart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFilePart
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFilePart
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == fileField && hasFilenameParam(part) {
			return part, nil
		}
		_ = part.Close()
	}
}

// hasFilenameParam reports whether the part was sent as a file. A plain form
// field named "file" carries no filename parameter at all, while a file input
// left empty sends filename="".
func hasFilenameParam(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
