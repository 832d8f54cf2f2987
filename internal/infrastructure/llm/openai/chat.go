// Package openai talks to OpenAI-compatible HTTP APIs such as Groq.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
)

const (
	DefaultChatURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultChatModel = "compound-beta"

	DefaultTimeout = 60 * time.Second
	MinTimeout     = 30 * time.Second
	MaxTimeout     = 120 * time.Second
)

type ChatConfig struct {
	// URL is the full chat completions endpoint.
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// ChatClient implements ports.ChatGenerator over /chat/completions.
type ChatClient struct {
	url     string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
	guard   *resilience.Guard
}

type chatCompletionRequest struct {
	Model     string               `json:"model"`
	Messages  []domain.ChatMessage `json:"messages"`
	MaxTokens int                  `json:"max_tokens,omitempty"`
	// Temperature is always sent; zero is a meaningful value.
	Temperature float64 `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewChatClient(cfg ChatConfig, guard *resilience.Guard) (*ChatClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultChatURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	timeout := ClampTimeout(cfg.Timeout)
	return &ChatClient{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
		client:  &http.Client{},
		guard:   guard,
	}, nil
}

// ClampTimeout bounds the generation deadline to [MinTimeout, MaxTimeout].
// Zero selects DefaultTimeout.
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultTimeout
	case d < MinTimeout:
		return MinTimeout
	case d > MaxTimeout:
		return MaxTimeout
	default:
		return d
	}
}

func (c *ChatClient) Complete(ctx context.Context, request domain.ChatRequest) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    request.Messages,
		MaxTokens:   request.MaxTokens,
		Temperature: request.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var content string
	err = c.guard.Execute(ctx, "generation.chat", func(ctx context.Context) error {
		out, callErr := c.post(ctx, body)
		content = out
		return callErr
	}, recordsFailure)
	if err != nil {
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			return "", err
		}
		if resilience.IsCircuitOpen(err) {
			err = domain.WrapError(domain.ErrTemporary, "generation.chat", err)
		}
		return "", &domain.GenerationError{Message: "chat completion unavailable", Err: err}
	}
	return content, nil
}

func (c *ChatClient) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		msg := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("request timed out after %s", c.timeout)
		}
		return "", &domain.GenerationError{Message: msg, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &domain.GenerationError{StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	var parsed chatCompletionResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &domain.GenerationError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil || len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", &domain.GenerationError{
			StatusCode: resp.StatusCode,
			Message:    "response has no choices[0].message.content",
			Raw:        string(raw),
		}
	}
	return *parsed.Choices[0].Message.Content, nil
}

// recordsFailure counts upstream outages against the breaker but not
// request errors such as a bad key or malformed payload.
func recordsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) && genErr.StatusCode > 0 {
		return genErr.StatusCode == http.StatusTooManyRequests || genErr.StatusCode >= 500
	}
	return true
}
