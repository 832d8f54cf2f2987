package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

// AnalyzeUseCase segments, indexes and scans documents. Only one analysis
// per document id runs at a time; a concurrent request gets
// domain.ErrAnalysisInProgress.
type AnalyzeUseCase struct {
	repo      ports.DocumentRepository
	clauses   ports.ClauseRepository
	extractor ports.TextExtractor
	segmenter ports.Segmenter
	scanner   ports.RiskScanner
	index     *ClauseIndex

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewAnalyzeUseCase(
	repo ports.DocumentRepository,
	clauses ports.ClauseRepository,
	extractor ports.TextExtractor,
	segmenter ports.Segmenter,
	scanner ports.RiskScanner,
	index *ClauseIndex,
) *AnalyzeUseCase {
	return &AnalyzeUseCase{
		repo:      repo,
		clauses:   clauses,
		extractor: extractor,
		segmenter: segmenter,
		scanner:   scanner,
		index:     index,
		inFlight:  make(map[string]struct{}),
	}
}

// AnalyzeByID runs the full pipeline on an uploaded document and records
// its status transitions.
func (uc *AnalyzeUseCase) AnalyzeByID(ctx context.Context, documentID string) (*domain.Analysis, error) {
	release, err := uc.acquire(documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	analysis, err := uc.analyze(ctx, doc)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	if err := uc.repo.MarkAnalyzed(ctx, documentID, analysis.Clauses); err != nil {
		return nil, fmt.Errorf("set status=ready: %w", err)
	}
	return analysis, nil
}

func (uc *AnalyzeUseCase) analyze(ctx context.Context, doc *domain.Document) (*domain.Analysis, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	clauses, err := uc.indexText(ctx, doc.ID, text)
	if err != nil {
		return nil, err
	}

	return &domain.Analysis{
		DocumentID: doc.ID,
		Clauses:    len(clauses),
		Flags:      uc.scanner.Scan(clauses),
	}, nil
}

// IndexText segments raw text and indexes it under documentID. No uploaded
// document record is required.
func (uc *AnalyzeUseCase) IndexText(ctx context.Context, documentID, text string) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "index text", errors.New("doc_id is required"))
	}
	release, err := uc.acquire(documentID)
	if err != nil {
		return 0, err
	}
	defer release()

	clauses, err := uc.indexText(ctx, documentID, text)
	if err != nil {
		return 0, err
	}
	return len(clauses), nil
}

func (uc *AnalyzeUseCase) indexText(ctx context.Context, documentID, text string) ([]domain.Clause, error) {
	clauses := uc.segmenter.Segment(text)
	if len(clauses) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "segment text", errors.New("document has no text"))
	}
	for i := range clauses {
		clauses[i].DocumentID = documentID
	}

	if err := uc.index.Upsert(ctx, documentID, clauses); err != nil {
		return nil, fmt.Errorf("index clauses: %w", err)
	}
	if err := uc.clauses.SaveClauses(ctx, documentID, clauses); err != nil {
		return nil, fmt.Errorf("save clauses: %w", err)
	}
	return clauses, nil
}

// Scan re-runs the rule library over the stored clauses of a document.
func (uc *AnalyzeUseCase) Scan(ctx context.Context, documentID string) ([]domain.RiskFlag, error) {
	clauses, err := uc.storedClauses(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return uc.scanner.Scan(clauses), nil
}

func (uc *AnalyzeUseCase) storedClauses(ctx context.Context, documentID string) ([]domain.Clause, error) {
	clauses, err := uc.clauses.ListClauses(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list clauses: %w", err)
	}
	if len(clauses) == 0 {
		return nil, domain.WrapError(domain.ErrNotIndexed, "list clauses", fmt.Errorf("no clauses stored for %s", documentID))
	}
	return clauses, nil
}

func (uc *AnalyzeUseCase) acquire(documentID string) (func(), error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, busy := uc.inFlight[documentID]; busy {
		return nil, domain.WrapError(domain.ErrAnalysisInProgress, "analyze", fmt.Errorf("document %s", documentID))
	}
	uc.inFlight[documentID] = struct{}{}
	return func() {
		uc.mu.Lock()
		delete(uc.inFlight, documentID)
		uc.mu.Unlock()
	}, nil
}

func (uc *AnalyzeUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *AnalyzeUseCase) markFailed(ctx context.Context, documentID string, analyzeErr error) error {
	if analyzeErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, analyzeErr.Error())
}
