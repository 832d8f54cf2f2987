// Package extractor picks a text extractor by document type.
package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/extractor/plaintext"
)

// Composite converts PDFs with the pdf extractor and everything else as text.
// A PDF that cannot be parsed is ingested as raw text instead.
type Composite struct {
	storage ports.ObjectStorage
}

func NewComposite(storage ports.ObjectStorage) *Composite {
	return &Composite{storage: storage}
}

func (c *Composite) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := c.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if !isPDF(doc, raw) {
		return plaintext.Decode(raw), nil
	}

	text, err := pdf.ExtractText(raw)
	if err != nil {
		slog.Warn("pdf_extract_failed_raw_fallback", "document_id", doc.ID, "filename", doc.Filename, "error", err)
		return plaintext.Decode(raw), nil
	}
	return text, nil
}

func isPDF(doc *domain.Document, raw []byte) bool {
	if strings.EqualFold(filepath.Ext(doc.Filename), ".pdf") {
		return true
	}
	if strings.Contains(strings.ToLower(doc.MimeType), "pdf") {
		return true
	}
	return len(raw) >= 5 && string(raw[:5]) == "%PDF-"
}
