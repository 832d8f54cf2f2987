package ports

import (
	"context"
	"io"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// DocumentRepository persists document state and the clauses of its last analysis.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	MarkAnalyzed(ctx context.Context, id string, clauseCount int) error
}

// ClauseRepository stores the segmentation result of a document.
// SaveClauses replaces any previously stored clauses for the document.
type ClauseRepository interface {
	SaveClauses(ctx context.Context, documentID string, clauses []domain.Clause) error
	ListClauses(ctx context.Context, documentID string) ([]domain.Clause, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes upload events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor converts a stored document into UTF-8 text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Segmenter splits raw text into ordered clauses.
type Segmenter interface {
	Segment(text string) []domain.Clause
}

// RiskScanner applies the rule library to clause text.
type RiskScanner interface {
	Scan(clauses []domain.Clause) []domain.RiskFlag
}

// Embedder builds vectors for clause batches and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore keeps one named collection per document.
// Query returns domain.ErrNotIndexed when the collection does not exist.
// Delete of ids or collections that do not exist is not an error.
// DeleteExcept removes every entry whose id is not in keep.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, records []domain.VectorRecord) error
	Query(ctx context.Context, collection string, vector []float32, topK int) ([]domain.EvidenceHit, error)
	Delete(ctx context.Context, collection string, ids []string) error
	DeleteExcept(ctx context.Context, collection string, keep []string) error
}

// ChatGenerator calls a chat-completion service and returns the raw reply text.
type ChatGenerator interface {
	Complete(ctx context.Context, req domain.ChatRequest) (string, error)
}

// ReportRenderer renders an analysis report artifact.
type ReportRenderer interface {
	ContentType() string
	Render(w io.Writer, report domain.Report) error
}
