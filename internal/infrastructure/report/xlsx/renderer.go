// Package xlsx exports the analysis report as an Excel workbook.
package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

const (
	SheetFlags   = "Flags"
	SheetClauses = "Clauses"

	// Excel rejects cells longer than this.
	maxCellChars = 32767
)

type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

func (r *Renderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (r *Renderer) Render(w io.Writer, report domain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetFlags); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetClauses); err != nil {
		return fmt.Errorf("create clauses sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	flagRows := make([][]any, 0, len(report.Flags)+1)
	flagRows = append(flagRows, []any{"Clause", "Tag", "Match", "Impact", "Likelihood", "Factors", "Mitigation"})
	for _, fl := range report.Flags {
		flagRows = append(flagRows, []any{
			fl.ClauseID, string(fl.Tag), fl.MatchText, fl.Impact, fl.Likelihood,
			strings.Join(fl.Factors, "\n"), strings.Join(fl.Mitigation, "\n"),
		})
	}
	if err := writeRows(f, SheetFlags, flagRows, header); err != nil {
		return err
	}

	clauseRows := make([][]any, 0, len(report.Clauses)+1)
	clauseRows = append(clauseRows, []any{"Clause", "Text"})
	for _, c := range report.Clauses {
		clauseRows = append(clauseRows, []any{c.ID, truncateCell(c.Text)})
	}
	if err := writeRows(f, SheetClauses, clauseRows, header); err != nil {
		return err
	}

	_ = f.SetColWidth(SheetFlags, "B", "C", 24)
	_ = f.SetColWidth(SheetFlags, "F", "G", 60)
	_ = f.SetColWidth(SheetClauses, "B", "B", 100)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, headerStyle)
}

func truncateCell(s string) string {
	runes := []rune(s)
	if len(runes) <= maxCellChars {
		return s
	}
	return string(runes[:maxCellChars])
}
