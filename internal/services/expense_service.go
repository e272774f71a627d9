package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
)

const setBudgetHint = "Amount should be a number. Example: /set_budget Food 300"

// RecordExpenseRequest is a chat-reported expense. Only Amount is required.
type RecordExpenseRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	Vendor   string           `json:"vendor,omitempty"`
	Category string           `json:"category,omitempty"`
	Date     string           `json:"date,omitempty"`
	Currency string           `json:"currency,omitempty"`
	Notes    string           `json:"notes,omitempty"`
}

// ExpenseService implements the operations offered to the chat front-end.
type ExpenseService struct {
	store    ExpenseStore
	agg      *AggregationEngine
	receipts ReceiptReader
}

func NewExpenseService(store ExpenseStore, agg *AggregationEngine, receipts ReceiptReader) *ExpenseService {
	return &ExpenseService{
		store:    store,
		agg:      agg,
		receipts: receipts,
	}
}

// RecordExpense saves a chat-reported expense. Date defaults to today (UTC)
// and category to Uncategorized.
func (s *ExpenseService) RecordExpense(ctx context.Context, req RecordExpenseRequest) (RecordResult, error) {
	if req.Amount == nil {
		return RecordResult{}, core.NewValidationError("amount", "amount is required", "Example: I spent 12.50 at Chipotle")
	}
	var date core.Date
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			return RecordResult{}, core.NewValidationError("date", fmt.Sprintf("invalid date %q", req.Date), "Use YYYY-MM-DD, for example 2024-03-15")
		}
		date = d
	}
	return s.record(ctx, core.Expense{
		Date:     date,
		Vendor:   req.Vendor,
		Amount:   *req.Amount,
		Currency: req.Currency,
		Category: req.Category,
		Source:   core.SourceChat,
		Notes:    req.Notes,
	})
}

// RecordExtracted saves an expense produced by the extractor or the
// receipt reader. A missing amount is a validation error.
func (s *ExpenseService) RecordExtracted(ctx context.Context, x core.ExtractedExpense, source core.Source) (RecordResult, error) {
	if x.Amount == nil {
		msg := "no amount found"
		hint := "Tell me how much you spent, for example: 12.50 at Chipotle"
		if source == core.SourceReceipt {
			hint = "No amount found on the receipt."
		}
		return RecordResult{}, core.NewValidationError("amount", msg, hint)
	}
	var date core.Date
	if x.Date != nil {
		date = *x.Date
	}
	return s.record(ctx, core.Expense{
		Date:     date,
		Vendor:   x.Vendor,
		Amount:   *x.Amount,
		Currency: x.Currency,
		Category: x.Category,
		Source:   source,
		Notes:    x.Notes,
	})
}

// ScanReceipt reads a receipt image and records the extracted expense.
func (s *ExpenseService) ScanReceipt(ctx context.Context, image []byte, mimeType string) (RecordResult, error) {
	if len(image) == 0 {
		return RecordResult{}, core.NewValidationError("image", "empty image", "Send a photo of the receipt")
	}
	if s.receipts == nil {
		return RecordResult{}, &core.CollaboratorError{Collaborator: "receipt reader", Err: errors.New("not configured")}
	}
	x, err := s.receipts.ReadReceipt(ctx, image, mimeType)
	if err != nil {
		if core.IsCollaborator(err) {
			return RecordResult{}, err
		}
		return RecordResult{}, &core.CollaboratorError{Collaborator: "receipt reader", Err: err}
	}
	return s.RecordExtracted(ctx, x, core.SourceReceipt)
}

func (s *ExpenseService) record(ctx context.Context, e core.Expense) (RecordResult, error) {
	saved, err := s.store.Record(ctx, e)
	if err != nil {
		return RecordResult{}, fmt.Errorf("record expense: %w", err)
	}
	return RecordResult{Status: "saved", Expense: newExpenseView(saved)}, nil
}

// MonthlySummary returns the summary of year/month; zero values mean the
// current UTC month.
func (s *ExpenseService) MonthlySummary(ctx context.Context, year, month int) (SummaryView, error) {
	year, month = defaultYearMonth(year, month)
	summary, err := s.agg.MonthlySummary(ctx, year, month)
	if err != nil {
		return SummaryView{}, err
	}
	return newSummaryView(summary), nil
}

// BudgetStatus reports spending against budgets for year/month; zero values
// mean the current UTC month.
func (s *ExpenseService) BudgetStatus(ctx context.Context, year, month int) ([]BudgetStatusView, error) {
	year, month = defaultYearMonth(year, month)
	lines, err := s.agg.BudgetStatus(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return newBudgetStatusViews(lines), nil
}

// RecentExpenses returns up to limit expenses of the current month, most recent first.
func (s *ExpenseService) RecentExpenses(ctx context.Context, limit int) ([]ExpenseView, error) {
	year, month := core.CurrentYearMonth()
	expenses, err := s.agg.Recent(ctx, year, month, limit)
	if err != nil {
		return nil, err
	}
	views := make([]ExpenseView, 0, len(expenses))
	for _, e := range expenses {
		views = append(views, newExpenseView(e))
	}
	return views, nil
}

// CategorySpending returns the detail of one category for year/month.
func (s *ExpenseService) CategorySpending(ctx context.Context, category string, year, month int) (CategorySpendingView, error) {
	year, month = defaultYearMonth(year, month)
	detail, err := s.agg.CategoryDetail(ctx, category, year, month, DefaultDetailLimit)
	if err != nil {
		return CategorySpendingView{}, err
	}
	return newCategorySpendingView(detail), nil
}

// ListCategories returns the categories in use, sorted.
func (s *ExpenseService) ListCategories(ctx context.Context) (CategoriesView, error) {
	cats, err := s.store.ListKnownCategories(ctx)
	if err != nil {
		return CategoriesView{}, err
	}
	sorted := append([]string{}, cats...)
	sort.Strings(sorted)
	return CategoriesView{Categories: sorted}, nil
}

// SetBudget parses amount and upserts the monthly budget of category.
func (s *ExpenseService) SetBudget(ctx context.Context, category, amount string) (BudgetView, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return BudgetView{}, core.NewValidationError("category", "category is required", "Usage: /set_budget <category> <amount>")
	}
	value, err := core.ParseAmount(amount)
	if err != nil || !value.IsPositive() {
		return BudgetView{}, core.NewValidationError("amount", fmt.Sprintf("invalid amount %q", amount), setBudgetHint)
	}
	b := core.Budget{Category: category, Amount: value, Period: core.PeriodMonthly}
	if err := s.store.UpsertBudget(ctx, b); err != nil {
		return BudgetView{}, fmt.Errorf("set budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget set", "category", category, "amount", value.String())
	return BudgetView{Category: category, Amount: core.Round2(value), Period: string(core.PeriodMonthly)}, nil
}

// ListBudgets returns every configured budget.
func (s *ExpenseService) ListBudgets(ctx context.Context) ([]BudgetView, error) {
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]BudgetView, 0, len(budgets))
	for _, b := range budgets {
		views = append(views, BudgetView{Category: b.Category, Amount: core.Round2(b.Amount), Period: string(b.Period)})
	}
	return views, nil
}

// ReassignCategory moves an expense to another category.
func (s *ExpenseService) ReassignCategory(ctx context.Context, id int64, category string) (ExpenseView, error) {
	if err := s.store.ReassignCategory(ctx, id, category); err != nil {
		return ExpenseView{}, err
	}
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return ExpenseView{}, err
	}
	return newExpenseView(e), nil
}

// MonthOverMonth compares year/month with the month before.
func (s *ExpenseService) MonthOverMonth(ctx context.Context, year, month int) (ComparisonView, error) {
	year, month = defaultYearMonth(year, month)
	c, err := s.agg.MonthOverMonth(ctx, year, month)
	if err != nil {
		return ComparisonView{}, err
	}
	return newComparisonView(c), nil
}

// WeekOverWeek compares the last seven days with the seven before.
func (s *ExpenseService) WeekOverWeek(ctx context.Context) (ComparisonView, error) {
	c, err := s.agg.WeekOverWeek(ctx, core.Today())
	if err != nil {
		return ComparisonView{}, err
	}
	return newComparisonView(c), nil
}

func defaultYearMonth(year, month int) (int, int) {
	cy, cm := core.CurrentYearMonth()
	if year == 0 {
		year = cy
	}
	if month == 0 {
		month = cm
	}
	return year, month
}
