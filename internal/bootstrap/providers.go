package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/contract-analyzer/internal/config"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/llm/openai"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/resilience"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/risk"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/contract-analyzer/internal/infrastructure/vector/sqlite"
)

// newRetrievalStack builds the embedding, storage, generation and rule
// components. A vector store that holds resources is registered with cleanup
// as soon as it is opened, so a later failure still releases it.
func newRetrievalStack(ctx context.Context, cfg config.Config, guard *resilience.Guard, cleanup *closers) (
	ports.Embedder, ports.VectorStore, ports.ChatGenerator, *risk.Scanner, error,
) {
	embedder, err := newEmbedder(cfg, guard)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	store, err := newVectorStore(cfg, guard)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if closer, ok := store.(io.Closer); ok {
		cleanup.add(func() { _ = closer.Close() })
	}
	generator, err := newGenerator(cfg, guard)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if generator == nil {
		slog.Warn("generation_not_configured", "hint", "set GENERATION_API_KEY or GROQ_API_KEY; answers fall back to evidence only")
	}
	scanner, err := newScanner(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return embedder, store, generator, scanner, nil
}

func newEmbedder(cfg config.Config, guard *resilience.Guard) (ports.Embedder, error) {
	switch cfg.EmbedProvider {
	case "", "hash":
		return hashing.New(cfg.EmbedDimension), nil
	case "ollama":
		return ollama.NewEmbedder(cfg.OllamaURL, cfg.OllamaEmbedModel, guard), nil
	case "openai":
		return openai.NewEmbeddingsClient(cfg.OpenAIEmbedURL, cfg.OpenAIEmbedAPIKey, cfg.OpenAIEmbedModel, guard), nil
	default:
		return nil, fmt.Errorf("unknown EMBED_PROVIDER %q", cfg.EmbedProvider)
	}
}

func newVectorStore(cfg config.Config, guard *resilience.Guard) (ports.VectorStore, error) {
	switch cfg.VectorBackend {
	case "", "sqlite":
		store, err := sqlite.Open(cfg.SQLiteVectorPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite vector store: %w", err)
		}
		return store, nil
	case "qdrant":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey, guard), nil
	default:
		return nil, fmt.Errorf("unknown VECTOR_BACKEND %q", cfg.VectorBackend)
	}
}

// newGenerator returns a nil interface when no credential is configured so the
// answer composer takes its evidence-only path.
func newGenerator(cfg config.Config, guard *resilience.Guard) (ports.ChatGenerator, error) {
	if cfg.GenerationAPIKey == "" {
		return nil, nil
	}
	client, err := openai.NewChatClient(openai.ChatConfig{
		URL:     cfg.GenerationURL,
		APIKey:  cfg.GenerationAPIKey,
		Model:   cfg.GenerationModel,
		Timeout: cfg.GenerationTimeout,
	}, guard)
	if err != nil {
		return nil, fmt.Errorf("init generation client: %w", err)
	}
	return client, nil
}

func newScanner(ctx context.Context, cfg config.Config) (*risk.Scanner, error) {
	if cfg.RiskRulesPath == "" {
		return risk.NewScanner(nil), nil
	}
	set, err := risk.LoadRuleSet(cfg.RiskRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load risk rules: %w", err)
	}
	scanner := risk.NewScanner(set)
	if cfg.RiskRulesWatch {
		if err := risk.StartWatch(ctx, cfg.RiskRulesPath, scanner); err != nil {
			return nil, fmt.Errorf("watch risk rules: %w", err)
		}
		slog.Info("risk_rules_watching", "path", cfg.RiskRulesPath)
	}
	return scanner, nil
}
