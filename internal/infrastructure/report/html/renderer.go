// Package html renders the analysis report as a standalone HTML page.
package html

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// DefaultMaxClauses bounds the clause listing of large contracts.
const DefaultMaxClauses = 30

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"lower": strings.ToLower,
}).Parse(reportTemplate))

type Renderer struct {
	MaxClauses int
	Now        func() time.Time
}

func New(maxClauses int) *Renderer {
	if maxClauses <= 0 {
		maxClauses = DefaultMaxClauses
	}
	return &Renderer{MaxClauses: maxClauses, Now: time.Now}
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

type view struct {
	DocID       string
	Filename    string
	Flags       []domain.RiskFlag
	Clauses     []domain.Clause
	ClauseCount int
	Truncated   bool
	GeneratedAt string
}

func (r *Renderer) Render(w io.Writer, report domain.Report) error {
	clauses := report.Clauses
	truncated := false
	if r.MaxClauses > 0 && len(clauses) > r.MaxClauses {
		clauses, truncated = clauses[:r.MaxClauses], true
	}

	v := view{
		DocID:       report.DocID,
		Flags:       report.Flags,
		Clauses:     clauses,
		ClauseCount: len(report.Clauses),
		Truncated:   truncated,
		GeneratedAt: r.Now().UTC().Format(time.RFC1123),
	}
	if report.Document != nil {
		v.Filename = report.Document.Filename
	}
	if err := tmpl.Execute(w, v); err != nil {
		return fmt.Errorf("execute report template: %w", err)
	}
	return nil
}
