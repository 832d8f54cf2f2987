package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrNotIndexed):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAnalysisInProgress):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	body := map[string]any{"error": err.Error()}

	var genErr *domain.GenerationError
	if errors.As(err, &genErr) && genErr.StatusCode > 0 {
		body["upstream_status"] = genErr.StatusCode
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}
