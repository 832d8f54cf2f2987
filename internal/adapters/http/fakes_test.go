package httpadapter

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/observability/metrics"
)

type ingestFake struct {
	err error
}

func (f ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", io.EOF)
	}

	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_" + filename,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "a.txt", MimeType: "text/plain", StoragePath: "a", Status: domain.StatusReady}, nil
}

type analyzerFake struct {
	err       error
	indexed   map[string]string
	flags     []domain.RiskFlag
	analyzeID string
}

func (f *analyzerFake) AnalyzeByID(_ context.Context, id string) (*domain.Analysis, error) {
	f.analyzeID = id
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Analysis{DocumentID: id, Clauses: 4, Flags: f.flags}, nil
}

func (f *analyzerFake) IndexText(_ context.Context, id, text string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.indexed == nil {
		f.indexed = map[string]string{}
	}
	f.indexed[id] = text
	return 2, nil
}

func (f *analyzerFake) Scan(_ context.Context, _ string) ([]domain.RiskFlag, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.flags, nil
}

type answerFake struct {
	err      error
	lastDoc  string
	lastQ    string
	lastTopK int
}

func (f *answerFake) Ask(_ context.Context, documentID, question string, topK int) (*domain.AnsweredQuery, error) {
	f.lastDoc, f.lastQ, f.lastTopK = documentID, question, topK
	if f.err != nil {
		return nil, f.err
	}
	d := 0.12
	return &domain.AnsweredQuery{
		Question: question,
		Evidence: []domain.EvidenceHit{{ClauseID: "c1", Text: "liability", Distance: &d}},
		Answer:   "Liability is capped [c1].",
	}, nil
}

type reportFake struct {
	err        error
	lastFormat string
}

func (f *reportFake) Report(_ context.Context, id, format string) (*domain.RenderedReport, error) {
	f.lastFormat = format
	if f.err != nil {
		return nil, f.err
	}
	if format == "xlsx" {
		return &domain.RenderedReport{ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Filename: id + ".xlsx", Body: []byte("PK")}, nil
	}
	return &domain.RenderedReport{ContentType: "text/html; charset=utf-8", Filename: id + ".html", Body: []byte("<html></html>")}, nil
}

type testDeps struct {
	analyzer *analyzerFake
	answerer *answerFake
	reports  *reportFake
	ingest   ingestFake
	docs     docsFake
	metrics  *metrics.HTTPServerMetrics
}

func newTestDeps() *testDeps {
	return &testDeps{
		analyzer: &analyzerFake{},
		answerer: &answerFake{},
		reports:  &reportFake{},
	}
}

func (d *testDeps) handler(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	rt, err := NewRouter(cfg, Services{
		Ingestor:  d.ingest,
		Documents: d.docs,
		Analyzer:  d.analyzer,
		Answerer:  d.answerer,
		Reports:   d.reports,
	}, d.metrics)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return rt.Handler()
}
