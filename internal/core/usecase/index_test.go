package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func TestClauseIndexUpsertIsIdempotent(t *testing.T) {
	store := newVectorStoreFake()
	embedder := &embedderFake{}
	index := NewClauseIndex(embedder, store, "contract_")
	clauses := []domain.Clause{{ID: "c1", Text: "alpha"}, {ID: "c2", Text: "beta"}}

	for i := 0; i < 2; i++ {
		if err := index.Upsert(context.Background(), "doc-1", clauses); err != nil {
			t.Fatalf("Upsert() #%d error = %v", i, err)
		}
	}
	if got := store.count("contract_doc-1"); got != 2 {
		t.Fatalf("expected exactly one entry per clause, got %d", got)
	}
	if embedder.calls != 2 {
		t.Fatalf("expected one batch embed call per upsert, got %d", embedder.calls)
	}
	if !reflect.DeepEqual(store.ops, []string{"prune", "delete", "upsert", "prune", "delete", "upsert"}) {
		t.Fatalf("expected delete before insert, got %v", store.ops)
	}
	rec := store.collections["contract_doc-1"]["c2"]
	if rec.Metadata[domain.MetadataDocumentID] != "doc-1" || rec.Metadata[domain.MetadataClauseID] != "c2" {
		t.Fatalf("unexpected metadata: %v", rec.Metadata)
	}
}

func TestClauseIndexUpsertDropsClausesMissingFromRevision(t *testing.T) {
	store := newVectorStoreFake()
	index := NewClauseIndex(&embedderFake{}, store, "")
	ctx := context.Background()

	first := []domain.Clause{
		{ID: "c1", Text: "alpha clause"},
		{ID: "c2", Text: "old indemnify clause"},
		{ID: "c3", Text: "old unlimited liability clause"},
	}
	if err := index.Upsert(ctx, "doc-1", first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := index.Upsert(ctx, "doc-1", []domain.Clause{{ID: "c1", Text: "alpha clause revised"}}); err != nil {
		t.Fatalf("Upsert() revision error = %v", err)
	}

	hits, err := index.Query(ctx, "doc-1", "liability", 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 1 || hits[0].ClauseID != "c1" || hits[0].Text != "alpha clause revised" {
		t.Fatalf("expected only the revised clause, got %+v", hits)
	}
}

func TestClauseIndexUpsertWrapsFailuresAsIndexing(t *testing.T) {
	cases := map[string]func(*embedderFake, *vectorStoreFake){
		"embed":  func(e *embedderFake, _ *vectorStoreFake) { e.err = errors.New("model down") },
		"delete": func(_ *embedderFake, s *vectorStoreFake) { s.deleteErr = errors.New("store down") },
		"upsert": func(_ *embedderFake, s *vectorStoreFake) { s.upsertErr = errors.New("disk full") },
	}
	for name, setup := range cases {
		embedder, store := &embedderFake{}, newVectorStoreFake()
		setup(embedder, store)
		err := NewClauseIndex(embedder, store, "").Upsert(context.Background(), "doc-1", []domain.Clause{{ID: "c1", Text: "x"}})
		if !errors.Is(err, domain.ErrIndexing) {
			t.Fatalf("%s: expected ErrIndexing, got %v", name, err)
		}
	}
}

func TestClauseIndexQueryUnknownDocument(t *testing.T) {
	index := NewClauseIndex(&embedderFake{}, newVectorStoreFake(), "")
	_, err := index.Query(context.Background(), "never-indexed", "question", 3)
	if !errors.Is(err, domain.ErrNotIndexed) {
		t.Fatalf("expected ErrNotIndexed, got %v", err)
	}
}

func TestClauseIndexQueryReturnsAllWhenTopKExceedsCount(t *testing.T) {
	store := newVectorStoreFake()
	index := NewClauseIndex(&embedderFake{}, store, "")
	if err := index.Upsert(context.Background(), "doc-1", []domain.Clause{{ID: "c1", Text: "alpha"}, {ID: "c2", Text: "beta"}}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	hits, err := index.Query(context.Background(), "doc-1", "beta?", 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 2 || hits[0].ClauseID != "c2" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}
