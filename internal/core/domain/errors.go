package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTemporary          = errors.New("temporary failure")
	ErrAnalysisInProgress = errors.New("analysis already in progress")

	ErrSegmentation = errors.New("segmentation failed")
	ErrIndexing     = errors.New("indexing failed")
	// ErrNotIndexed is returned when a document has no vector collection yet.
	ErrNotIndexed = errors.New("document not indexed")
	ErrGeneration = errors.New("generation failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// GenerationError carries upstream diagnostics from the generation service.
// Raw holds the response body when the reply could not be parsed.
type GenerationError struct {
	StatusCode int
	Message    string
	Raw        string
	Err        error
}

func (e *GenerationError) Error() string {
	if e == nil {
		return ErrGeneration.Error()
	}
	parts := []string{ErrGeneration.Error()}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if e.Raw != "" {
		parts = append(parts, "raw response: "+e.Raw)
	}
	return strings.Join(parts, ": ")
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
