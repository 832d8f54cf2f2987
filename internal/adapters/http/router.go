package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/routers"

	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/observability/metrics"
)

const (
	serviceName       = "api"
	maxJSONBodyBytes  = 4 << 20
	backpressureWait  = 100 * time.Millisecond
	reportInlineTypes = "text/html"
)

// Services are the inbound use cases exposed over HTTP.
type Services struct {
	Ingestor  ports.DocumentIngestor
	Documents ports.DocumentReader
	Analyzer  ports.DocumentAnalyzer
	Answerer  ports.QuestionAnswerer
	Reports   ports.ReportBuilder
}

type Router struct {
	cfg       config.Config
	svc       Services
	metrics   *metrics.HTTPServerMetrics
	validator routers.Router
}

// NewRouter builds the API router. m may be nil.
func NewRouter(cfg config.Config, svc Services, m *metrics.HTTPServerMetrics) (*Router, error) {
	validator, err := loadOpenAPIRouter()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:       cfg,
		svc:       svc,
		metrics:   m,
		validator: validator,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPISpec)

	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("POST /v1/documents/sample", rt.indexSample)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("POST /v1/documents/{id}/analyze", rt.analyzeDocument)
	mux.HandleFunc("POST /v1/documents/{id}/index", rt.indexText)
	mux.HandleFunc("GET /v1/documents/{id}/flags", rt.scanDocument)
	mux.HandleFunc("POST /v1/documents/{id}/ask", rt.askDocument)
	mux.HandleFunc("GET /v1/documents/{id}/report", rt.getReport)
	mux.HandleFunc("POST /query", rt.legacyQuery)

	var h http.Handler = mux
	h = openAPIValidationMiddleware(rt.validator, h)
	h = backpressureMiddleware(h, rt.cfg.APIMaxInFlight, backpressureWait, rt.recordBackpressure)
	h = rateLimitMiddleware(h, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRateLimited)
	h = corsMiddleware(rt.cfg.APICORSOrigins, h)
	if rt.metrics != nil {
		h = rt.metrics.Middleware(serviceName, h)
	}
	h = accessLogMiddleware(h)
	return requestIDMiddleware(h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func serveOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPISpec)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.svc.Ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.svc.Documents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	analysis, err := rt.svc.Analyzer.AnalyzeByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordAnalysis("analyze", analysis.Clauses, analysis.Flags)
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) indexText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	count, err := rt.svc.Analyzer.IndexText(r.Context(), id, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordAnalysis("index", count, nil)
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "clauses": count})
}

func (rt *Router) indexSample(w http.ResponseWriter, r *http.Request) {
	count, err := rt.svc.Analyzer.IndexText(r.Context(), SampleDocumentID, SampleContractText)
	if err != nil {
		writeError(w, err)
		return
	}
	flags, err := rt.svc.Analyzer.Scan(r.Context(), SampleDocumentID)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordAnalysis("sample", count, flags)
	writeJSON(w, http.StatusOK, domain.Analysis{DocumentID: SampleDocumentID, Clauses: count, Flags: flags})
}

func (rt *Router) scanDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	flags, err := rt.svc.Analyzer.Scan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "flags": flags})
}

func (rt *Router) askDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.answer(w, r, "ask", r.PathValue("id"), req.Question, req.TopK)
}

// legacyQuery keeps the flat {doc_id, query, top_k} request shape.
func (rt *Router) legacyQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocID string `json:"doc_id"`
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.answer(w, r, "query", req.DocID, req.Query, req.TopK)
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request, endpoint, documentID, question string, topK int) {
	if strings.TrimSpace(question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	result, err := rt.svc.Answerer.Ask(r.Context(), documentID, question, topK)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAskObservation(serviceName, endpoint, len(result.Evidence), result.Degraded, time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	report, err := rt.svc.Reports.Report(r.Context(), r.PathValue("id"), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	disposition := "attachment"
	if strings.HasPrefix(report.ContentType, reportInlineTypes) {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, report.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Body)
}

func (rt *Router) recordAnalysis(endpoint string, clauses int, flags []domain.RiskFlag) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordAnalysis(serviceName, endpoint, clauses)
	rt.metrics.RecordRiskFlags(serviceName, flags)
}

func (rt *Router) recordRateLimited() {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(serviceName)
	}
}

func (rt *Router) recordBackpressure() {
	if rt.metrics != nil {
		rt.metrics.RecordBackpressure(serviceName)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
