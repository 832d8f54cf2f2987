package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

const DefaultReportFormat = "html"

// ReportUseCase renders stored analysis results in a requested format.
type ReportUseCase struct {
	repo      ports.DocumentRepository
	analyzer  *AnalyzeUseCase
	renderers map[string]ports.ReportRenderer
}

func NewReportUseCase(repo ports.DocumentRepository, analyzer *AnalyzeUseCase) *ReportUseCase {
	return &ReportUseCase{
		repo:      repo,
		analyzer:  analyzer,
		renderers: make(map[string]ports.ReportRenderer),
	}
}

// Register adds a renderer for format; the format name doubles as file extension.
func (uc *ReportUseCase) Register(format string, renderer ports.ReportRenderer) *ReportUseCase {
	format = strings.ToLower(format)
	uc.renderers[format] = renderer
	return uc
}

func (uc *ReportUseCase) Report(ctx context.Context, documentID, format string) (*domain.RenderedReport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = DefaultReportFormat
	}
	renderer, ok := uc.renderers[format]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "report", fmt.Errorf("unsupported format %q", format))
	}

	clauses, err := uc.analyzer.storedClauses(ctx, documentID)
	if err != nil {
		return nil, err
	}

	// Text indexed directly has no document record.
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	report := domain.Report{
		Document: doc,
		DocID:    documentID,
		Clauses:  clauses,
		Flags:    uc.analyzer.scanner.Scan(clauses),
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, report); err != nil {
		return nil, fmt.Errorf("render %s report: %w", format, err)
	}
	return &domain.RenderedReport{
		ContentType: renderer.ContentType(),
		Filename:    fmt.Sprintf("%s.%s", sanitizeFilename(documentID), format),
		Body:        buf.Bytes(),
	}, nil
}
