package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
)

const DefaultEmbeddingsBaseURL = "https://api.openai.com/v1"

// EmbeddingsClient calls an OpenAI-compatible /embeddings endpoint.
// APIKey may be empty for local servers.
type EmbeddingsClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	guard   *resilience.Guard
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewEmbeddingsClient(baseURL, apiKey, model string, guard *resilience.Guard) *EmbeddingsClient {
	if baseURL == "" {
		baseURL = DefaultEmbeddingsBaseURL
	}
	return &EmbeddingsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
		guard:   guard,
	}
}

func (c *EmbeddingsClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	var parsed embeddingResponse
	err = c.guard.Execute(ctx, "openai.embed", func(ctx context.Context) error {
		return c.post(ctx, body, &parsed)
	}, embedRecordsFailure)
	if err != nil {
		if resilience.IsCircuitOpen(err) || isTransient(err) {
			return nil, domain.WrapError(domain.ErrTemporary, "openai.embed", err)
		}
		return nil, err
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d inputs", len(parsed.Data), len(texts))
	}
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (c *EmbeddingsClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type statusError struct {
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openai embeddings status %d: %s", e.StatusCode, e.Message)
}

func (c *EmbeddingsClient) post(ctx context.Context, body []byte, out *embeddingResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai embeddings request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read embeddings response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		var errResp embeddingResponse
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return &statusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode embeddings response: %w", err)
	}
	return nil
}

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return false
}

func embedRecordsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return isTransient(err)
	}
	return true
}
