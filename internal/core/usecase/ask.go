package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// AskUseCase answers a question about one indexed document.
type AskUseCase struct {
	retriever   *Retriever
	composer    *AnswerComposer
	defaultTopK int
	// degradeOnGenerationError substitutes the evidence-only answer when the
	// generation call fails instead of failing the request.
	degradeOnGenerationError bool
}

func NewAskUseCase(retriever *Retriever, composer *AnswerComposer, defaultTopK int, degradeOnGenerationError bool) *AskUseCase {
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &AskUseCase{
		retriever:                retriever,
		composer:                 composer,
		defaultTopK:              defaultTopK,
		degradeOnGenerationError: degradeOnGenerationError,
	}
}

// Ask treats topK == 0 as "use the default".
func (uc *AskUseCase) Ask(ctx context.Context, documentID, question string, topK int) (*domain.AnsweredQuery, error) {
	if topK == 0 {
		topK = uc.defaultTopK
	}

	evidence, err := uc.retriever.Retrieve(ctx, documentID, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}

	answer, degraded, err := uc.composer.Compose(ctx, question, evidence)
	if err != nil {
		if !uc.degradeOnGenerationError || !domain.IsKind(err, domain.ErrGeneration) {
			return nil, fmt.Errorf("compose answer: %w", err)
		}
		slog.Warn("generation_failed_degraded", "doc_id", documentID, "error", err)
		answer, degraded = FallbackAnswer(evidence), true
	}

	return &domain.AnsweredQuery{
		Question: question,
		Evidence: evidence,
		Answer:   answer,
		Degraded: degraded,
	}, nil
}
