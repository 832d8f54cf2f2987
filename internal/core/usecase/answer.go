package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

const (
	NoRelevantClause = "No relevant clause found."

	DefaultMaxTokens = 512
	maxSnippetChars  = 1000

	unconfiguredPrefix = "Generation service is not configured; relevant clauses:\n\n"

	systemPrompt = "You are a legal assistant. " +
		"Answer using ONLY the provided evidence. " +
		"Cite clause ids in square brackets, for example [c1]. " +
		"If the evidence is insufficient, reply exactly with '" + NoRelevantClause + "' " +
		"Do NOT include hidden reasoning and do NOT use <think> tags."
)

var (
	thinkBlock    = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkOpen     = regexp.MustCompile(`(?is)<think>.*$`)
	debugSentinel = regexp.MustCompile(`(?im)\[DEBUG\]|<debug>|^[ \t]*DEBUG:`)
)

// AnswerComposer turns retrieved evidence into a grounded answer.
// A nil generator means no credential is configured; Compose then returns
// the evidence block without any network call.
type AnswerComposer struct {
	generator ports.ChatGenerator
	maxTokens int
}

func NewAnswerComposer(generator ports.ChatGenerator, maxTokens int) *AnswerComposer {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnswerComposer{generator: generator, maxTokens: maxTokens}
}

// Compose returns the answer and whether it is the evidence-only fallback.
func (c *AnswerComposer) Compose(ctx context.Context, question string, evidence []domain.EvidenceHit) (string, bool, error) {
	block := EvidenceBlock(evidence)
	if c.generator == nil {
		return FallbackAnswer(evidence), true, nil
	}
	if block == "" {
		return NoRelevantClause, false, nil
	}

	reply, err := c.generator.Complete(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "QUESTION: " + question + "\n\nEVIDENCE:\n" + block},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGeneration) {
			err = &domain.GenerationError{Message: "chat completion failed", Err: err}
		}
		return "", false, err
	}

	answer := Sanitize(reply)
	if answer == "" {
		answer = NoRelevantClause
	}
	return answer, false, nil
}

// FallbackAnswer is the deterministic evidence-only answer.
func FallbackAnswer(evidence []domain.EvidenceHit) string {
	block := EvidenceBlock(evidence)
	if block == "" {
		return NoRelevantClause
	}
	return unconfiguredPrefix + block
}

// EvidenceBlock renders hits as "[clause_id]: snippet" joined by blank lines.
func EvidenceBlock(evidence []domain.EvidenceHit) string {
	lines := make([]string, 0, len(evidence))
	for _, hit := range evidence {
		lines = append(lines, "["+hit.ClauseID+"]: "+snippet(hit.Text))
	}
	return strings.Join(lines, "\n\n")
}

func snippet(text string) string {
	if utf8.RuneCountInString(text) > maxSnippetChars {
		runes := []rune(text)
		text = string(runes[:maxSnippetChars])
	}
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(text)
}

// Sanitize strips hidden-reasoning blocks and debug tails from a model reply.
func Sanitize(reply string) string {
	out := thinkBlock.ReplaceAllString(reply, "")
	out = thinkOpen.ReplaceAllString(out, "")
	if loc := debugSentinel.FindStringIndex(out); loc != nil {
		out = out[:loc[0]]
	}
	return strings.TrimSpace(out)
}
