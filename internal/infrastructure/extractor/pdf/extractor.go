// Package pdf extracts text from PDF documents.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// ExtractText joins the plain text of every page with newlines. Unreadable
// input is reported as domain.ErrSegmentation.
func ExtractText(raw []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", domain.WrapError(domain.ErrSegmentation, "parse pdf", fmt.Errorf("%v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrSegmentation, "parse pdf", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", domain.WrapError(domain.ErrSegmentation, "parse pdf", fmt.Errorf("page %d: %w", i, err))
		}
		pages = append(pages, content)
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}
