package ports

import (
	"context"
	"io"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentAnalyzer indexes and scans documents.
type DocumentAnalyzer interface {
	AnalyzeByID(ctx context.Context, documentID string) (*domain.Analysis, error)
	IndexText(ctx context.Context, documentID, text string) (int, error)
	Scan(ctx context.Context, documentID string) ([]domain.RiskFlag, error)
}

// QuestionAnswerer is the inbound contract for grounded question answering.
type QuestionAnswerer interface {
	Ask(ctx context.Context, documentID, question string, topK int) (*domain.AnsweredQuery, error)
}

// ReportBuilder renders the analysis report of one document.
type ReportBuilder interface {
	Report(ctx context.Context, documentID, format string) (*domain.RenderedReport, error)
}
