package extractor

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/extractor/pdf"
)

type storageFake struct {
	body string
	err  error
}

func (s *storageFake) Save(context.Context, string, io.Reader) error { return nil }

func (s *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestCompositeReadsPlainText(t *testing.T) {
	c := NewComposite(&storageFake{body: "  1. Liability\n\nText\xff here.\x00  "})
	text, err := c.Extract(context.Background(), &domain.Document{Filename: "msa.txt", MimeType: "text/plain"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "1. Liability\n\nText here." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestCompositeFallsBackToRawTextForBrokenPDF(t *testing.T) {
	c := NewComposite(&storageFake{body: "not really a pdf\n\nIndemnify clause"})
	text, err := c.Extract(context.Background(), &domain.Document{ID: "d1", Filename: "scan.PDF"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "Indemnify clause") {
		t.Fatalf("expected raw-text fallback, got %q", text)
	}
}

func TestCompositeStorageError(t *testing.T) {
	c := NewComposite(&storageFake{err: errors.New("gone")})
	if _, err := c.Extract(context.Background(), &domain.Document{Filename: "a.txt"}); err == nil {
		t.Fatalf("expected storage error")
	}
}

func TestExtractTextReportsSegmentationError(t *testing.T) {
	_, err := pdf.ExtractText([]byte("%PDF-1.4 truncated"))
	if !errors.Is(err, domain.ErrSegmentation) {
		t.Fatalf("expected ErrSegmentation, got %v", err)
	}
}

func TestIsPDF(t *testing.T) {
	cases := []struct {
		doc  domain.Document
		raw  string
		want bool
	}{
		{domain.Document{Filename: "a.pdf"}, "", true},
		{domain.Document{Filename: "a.bin", MimeType: "application/pdf"}, "", true},
		{domain.Document{Filename: "upload"}, "%PDF-1.7", true},
		{domain.Document{Filename: "a.md", MimeType: "text/markdown"}, "# Terms", false},
	}
	for _, tc := range cases {
		if got := isPDF(&tc.doc, []byte(tc.raw)); got != tc.want {
			t.Fatalf("isPDF(%+v) = %v, want %v", tc.doc, got, tc.want)
		}
	}
}
