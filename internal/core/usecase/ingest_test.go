package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func TestIngestUploadSuccess(t *testing.T) {
	repo := newDocRepoFake()
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue)

	doc, err := uc.Upload(context.Background(), "master services 1.pdf", "application/pdf", bytes.NewBufferString("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected document id")
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if _, ok := repo.docs[doc.ID]; !ok {
		t.Fatalf("expected repo.Create call")
	}
	if queue.documentID != doc.ID {
		t.Fatalf("expected queued doc id %s, got %s", doc.ID, queue.documentID)
	}
	if !strings.HasSuffix(storage.savedKey, "_master_services_1.pdf") {
		t.Fatalf("expected sanitized key suffix, got %s", storage.savedKey)
	}
	if storage.savedBody != "hello" {
		t.Fatalf("expected saved body hello, got %s", storage.savedBody)
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	uc := NewIngestDocumentUseCase(newDocRepoFake(), &storageFake{}, &queueFake{err: errors.New("queue down")})

	_, err := uc.Upload(context.Background(), "contract.txt", "text/plain", bytes.NewBufferString("hello"))
	if err == nil || !strings.Contains(err.Error(), "publish upload event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestIngestUploadRequiresFilename(t *testing.T) {
	uc := NewIngestDocumentUseCase(newDocRepoFake(), &storageFake{}, &queueFake{})

	_, err := uc.Upload(context.Background(), "  ", "text/plain", bytes.NewBufferString("hello"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd": "passwd",
		"Vertrag (v2).txt": "Vertrag__v2_.txt",
		"":                 "document.bin",
		"contrat-été.pdf":  "contrat-_t_.pdf",
		"/":                "_",
		"NDA final.md":     "NDA_final.md",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
