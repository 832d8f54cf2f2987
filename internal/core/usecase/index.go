package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

// ClauseIndex keeps one vector collection per document.
type ClauseIndex struct {
	embedder ports.Embedder
	store    ports.VectorStore
	prefix   string
}

func NewClauseIndex(embedder ports.Embedder, store ports.VectorStore, collectionPrefix string) *ClauseIndex {
	return &ClauseIndex{
		embedder: embedder,
		store:    store,
		prefix:   collectionPrefix,
	}
}

func (ix *ClauseIndex) Collection(documentID string) string {
	return ix.prefix + documentID
}

// Upsert embeds the clauses in one batch and replaces any entries with the
// same clause ids. Entries of clauses that are no longer present are dropped,
// so a shorter revision leaves no stale evidence. The deletes and insert all
// finish before it returns.
func (ix *ClauseIndex) Upsert(ctx context.Context, documentID string, clauses []domain.Clause) error {
	if len(clauses) == 0 {
		return nil
	}

	texts := make([]string, len(clauses))
	ids := make([]string, len(clauses))
	for i, c := range clauses {
		texts[i] = c.Text
		ids[i] = c.ID
	}

	vectors, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.WrapError(domain.ErrIndexing, "embed clauses", err)
	}
	if len(vectors) != len(clauses) {
		return domain.WrapError(domain.ErrIndexing, "embed clauses",
			fmt.Errorf("vectors/clauses mismatch: %d/%d", len(vectors), len(clauses)))
	}

	records := make([]domain.VectorRecord, len(clauses))
	for i, c := range clauses {
		records[i] = domain.VectorRecord{
			ID:       c.ID,
			Vector:   vectors[i],
			Document: c.Text,
			Metadata: map[string]string{
				domain.MetadataDocumentID: documentID,
				domain.MetadataClauseID:   c.ID,
			},
		}
	}

	collection := ix.Collection(documentID)
	if err := ix.store.DeleteExcept(ctx, collection, ids); err != nil {
		return domain.WrapError(domain.ErrIndexing, "drop stale clauses", err)
	}
	if err := ix.store.Delete(ctx, collection, ids); err != nil {
		return domain.WrapError(domain.ErrIndexing, "delete previous clauses", err)
	}
	if err := ix.store.Upsert(ctx, collection, records); err != nil {
		return domain.WrapError(domain.ErrIndexing, "write clauses", err)
	}
	return nil
}

// Query returns up to topK hits ordered by ascending distance.
func (ix *ClauseIndex) Query(ctx context.Context, documentID, text string, topK int) ([]domain.EvidenceHit, error) {
	vector, err := ix.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := ix.store.Query(ctx, ix.Collection(documentID), vector, topK)
	if err != nil {
		return nil, fmt.Errorf("query clauses: %w", err)
	}
	return hits, nil
}
