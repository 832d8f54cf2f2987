package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const DefaultTopK = 3

type Retriever struct {
	index *ClauseIndex
}

func NewRetriever(index *ClauseIndex) *Retriever {
	return &Retriever{index: index}
}

// Retrieve returns the topK clauses nearest to question. An unindexed
// document yields domain.ErrNotIndexed.
func (r *Retriever) Retrieve(ctx context.Context, documentID, question string, topK int) ([]domain.EvidenceHit, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("doc_id is required"))
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("question is required"))
	}
	if topK < 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("top_k must be >= 1"))
	}
	return r.index.Query(ctx, documentID, question, topK)
}
