package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
)

// Embedder calls the Ollama /api/embed endpoint.
type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	guard      *resilience.Guard
}

func NewEmbedder(baseURL, model string, guard *resilience.Guard) *Embedder {
	return &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		guard:      guard,
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.model,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.guard.Execute(ctx, "ollama.embed", func(ctx context.Context) error {
		return e.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, recordsFailure)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama.embed", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
