package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
)

func newTestChatClient(t *testing.T, url string) *ChatClient {
	t.Helper()
	client, err := NewChatClient(ChatConfig{URL: url, APIKey: "secret", Model: "test-model"}, nil)
	if err != nil {
		t.Fatalf("NewChatClient() error = %v", err)
	}
	return client
}

func TestCompleteSendsRequestAndReturnsContent(t *testing.T) {
	var (
		payload   map[string]any
		auth      string
		decodeErr error
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		decodeErr = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Capped at fees [c1]."}}]}`))
	}))
	defer server.Close()

	out, err := newTestChatClient(t, server.URL).Complete(context.Background(), domain.ChatRequest{
		Messages:    []domain.ChatMessage{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		MaxTokens:   512,
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if decodeErr != nil {
		t.Fatalf("decode request: %v", decodeErr)
	}
	if out != "Capped at fees [c1]." {
		t.Fatalf("unexpected content %q", out)
	}
	if payload["model"] != "test-model" || payload["max_tokens"] != float64(512) {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if temp, ok := payload["temperature"]; !ok || temp != float64(0) {
		t.Fatalf("expected explicit temperature 0, got %v (present=%v)", temp, ok)
	}
	if msgs, _ := payload["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %v", payload["messages"])
	}
}

func TestCompleteMapsNon2xxToGenerationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	_, err := newTestChatClient(t, server.URL).Complete(context.Background(), domain.ChatRequest{})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) || genErr.StatusCode != http.StatusUnauthorized || genErr.Message != "invalid api key" {
		t.Fatalf("unexpected generation error: %#v", err)
	}
}

func TestCompleteKeepsRawBodyOnMalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestChatClient(t, server.URL).Complete(context.Background(), domain.ChatRequest{})
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Raw != `{"choices":[]}` {
		t.Fatalf("expected raw body, got %q", genErr.Raw)
	}
	if !strings.Contains(err.Error(), "raw response") {
		t.Fatalf("expected raw response in message, got %v", err)
	}
}

func TestCompleteCancelledContextIsGenerationError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestChatClient(t, server.URL).Complete(ctx, domain.ChatRequest{})
	if !errors.Is(err, domain.ErrGeneration) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected generation timeout, got %v", err)
	}
}

func TestCompleteOpenCircuitIsTemporaryGenerationError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	guard := resilience.NewGuard(resilience.Config{
		Enabled:         true,
		MinRequests:     1,
		FailureRatio:    1,
		OpenTimeout:     time.Minute,
		HalfOpenMaxCall: 1,
	})
	client, err := NewChatClient(ChatConfig{URL: server.URL, APIKey: "secret"}, guard)
	if err != nil {
		t.Fatalf("NewChatClient() error = %v", err)
	}

	req := domain.ChatRequest{Messages: []domain.ChatMessage{{Role: "user", Content: "u"}}}
	if _, err := client.Complete(context.Background(), req); !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration on first failure, got %v", err)
	}

	_, err = client.Complete(context.Background(), req)
	if !errors.Is(err, domain.ErrGeneration) || !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary generation error from open circuit, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected upstream to be called once, got %d", calls)
	}
}

func TestNewChatClientRequiresKey(t *testing.T) {
	if _, err := NewChatClient(ChatConfig{}, nil); err == nil {
		t.Fatalf("expected error without API key")
	}
}

func TestClampTimeout(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		0:                DefaultTimeout,
		5 * time.Second:  MinTimeout,
		45 * time.Second: 45 * time.Second,
		10 * time.Minute: MaxTimeout,
	}
	for in, want := range cases {
		if got := ClampTimeout(in); got != want {
			t.Fatalf("ClampTimeout(%s) = %s, want %s", in, got, want)
		}
	}
}
