package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"expensebot/internal/core"
)

// SheetWriter replaces the contents of one named tab of a spreadsheet and
// returns the range it wrote. internal/export/sheets implements it.
type SheetWriter interface {
	ReplaceSheet(ctx context.Context, title string, rows [][]any) (string, error)
}

// ExportResult describes one monthly export.
type ExportResult struct {
	Sheet    string  `json:"sheet"`
	Range    string  `json:"range"`
	Expenses int     `json:"expenses"`
	Total    float64 `json:"total"`
}

var exportHeader = []any{"Date", "Vendor", "Amount", "Currency", "Category", "Source", "Notes"}

// ExportSheetName is the tab a month is exported to, e.g. "2024-03 Expenses".
func ExportSheetName(year, month int) string {
	return fmt.Sprintf("%s Expenses", core.PeriodLabel(year, month))
}

// ExportMonth writes every expense of year/month, oldest first, followed by
// a total row. Zero values mean the current UTC month. The tab is
// overwritten so repeated exports converge to the store's contents.
func (s *ExpenseService) ExportMonth(ctx context.Context, w SheetWriter, year, month int) (ExportResult, error) {
	year, month = defaultYearMonth(year, month)
	start, end, err := core.MonthBounds(year, month)
	if err != nil {
		return ExportResult{}, err
	}
	expenses, err := s.store.QueryRange(ctx, start, end)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export query: %w", err)
	}
	sort.SliceStable(expenses, func(i, j int) bool {
		if !expenses[i].Date.Equal(expenses[j].Date.Time) {
			return expenses[i].Date.Before(expenses[j].Date.Time)
		}
		return expenses[i].ID < expenses[j].ID
	})

	rows := make([][]any, 0, len(expenses)+3)
	rows = append(rows, exportHeader)
	for _, e := range expenses {
		v := newExpenseView(e)
		rows = append(rows, []any{v.Date, v.Vendor, v.Amount, v.Currency, v.Category, v.Source, v.Notes})
	}
	total := core.Round2(core.SumAmounts(expenses))
	rows = append(rows, []any{}, []any{"Total", "", total})

	sheet := ExportSheetName(year, month)
	rng, err := w.ReplaceSheet(ctx, sheet, rows)
	if err != nil {
		return ExportResult{}, err
	}

	slog.InfoContext(ctx, "Month exported",
		"sheet", sheet, "range", rng,
		"expenses", len(expenses), "total", total)

	return ExportResult{Sheet: sheet, Range: rng, Expenses: len(expenses), Total: total}, nil
}
