package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
)

const (
	DefaultCategoryLimit = 10
	DefaultVendorLimit   = 5
	DefaultDetailLimit   = 10
)

// AggregationEngine answers time-windowed questions over the expense store.
// Sums are kept at full precision; rounding happens in the response layer.
type AggregationEngine struct {
	store         ExpenseStore
	categoryLimit int
	vendorLimit   int
}

func NewAggregationEngine(store ExpenseStore) *AggregationEngine {
	return &AggregationEngine{
		store:         store,
		categoryLimit: DefaultCategoryLimit,
		vendorLimit:   DefaultVendorLimit,
	}
}

// MonthlySummary returns the month total with the top categories and vendors.
func (a *AggregationEngine) MonthlySummary(ctx context.Context, year, month int) (core.MonthlySummary, error) {
	start, end, err := core.MonthBounds(year, month)
	if err != nil {
		return core.MonthlySummary{}, err
	}

	total, err := a.store.Total(ctx, start, end)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("month total: %w", err)
	}
	byCategory, err := a.store.Aggregate(ctx, start, end, core.GroupByCategory)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("category breakdown: %w", err)
	}
	byVendor, err := a.store.Aggregate(ctx, start, end, core.GroupByVendor)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("vendor breakdown: %w", err)
	}

	count := 0
	for _, g := range byCategory {
		count += g.Count
	}

	slog.DebugContext(ctx, "Monthly summary computed",
		"year", year, "month", month,
		"total", total.String(), "categories", len(byCategory))

	return core.MonthlySummary{
		Year:          year,
		Month:         month,
		Total:         total,
		Count:         count,
		TopCategories: head(byCategory, a.categoryLimit),
		TopVendors:    head(byVendor, a.vendorLimit),
	}, nil
}

// BudgetStatus merges the month's category spending with the budgets.
// Budgeted categories come first in budget-list order, followed by
// categories with spending and no budget in aggregate order.
func (a *AggregationEngine) BudgetStatus(ctx context.Context, year, month int) ([]core.BudgetLine, error) {
	start, end, err := core.MonthBounds(year, month)
	if err != nil {
		return nil, err
	}
	byCategory, err := a.store.Aggregate(ctx, start, end, core.GroupByCategory)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	budgets, err := a.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	spent := make(map[string]decimal.Decimal, len(byCategory))
	for _, g := range byCategory {
		spent[g.Key] = spent[g.Key].Add(g.Sum)
	}

	lines := make([]core.BudgetLine, 0, len(budgets)+len(byCategory))
	budgeted := make(map[string]bool, len(budgets))
	for _, b := range budgets {
		budget := b.Amount
		s := spent[b.Category]
		remaining := budget.Sub(s)
		lines = append(lines, core.BudgetLine{
			Category:   b.Category,
			Spent:      s,
			Budget:     &budget,
			Remaining:  &remaining,
			OverBudget: remaining.IsNegative(),
		})
		budgeted[b.Category] = true
	}
	for _, g := range byCategory {
		if budgeted[g.Key] {
			continue
		}
		budgeted[g.Key] = true
		lines = append(lines, core.BudgetLine{Category: g.Key, Spent: spent[g.Key]})
	}
	return lines, nil
}

// CategoryDetail returns the total, count and the most recent transactions
// of one category in a month. The category is matched case-insensitively.
func (a *AggregationEngine) CategoryDetail(ctx context.Context, category string, year, month, limit int) (core.CategoryDetail, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return core.CategoryDetail{}, core.NewValidationError("category", core.ErrEmptyCategory.Error(), "Name a category, for example Food")
	}
	if limit <= 0 {
		limit = DefaultDetailLimit
	}
	start, end, err := core.MonthBounds(year, month)
	if err != nil {
		return core.CategoryDetail{}, err
	}
	expenses, err := a.store.QueryCategoryRange(ctx, category, start, end)
	if err != nil {
		return core.CategoryDetail{}, fmt.Errorf("category expenses: %w", err)
	}

	return core.CategoryDetail{
		Category:     category,
		Year:         year,
		Month:        month,
		Total:        core.SumAmounts(expenses),
		Count:        len(expenses),
		Transactions: mostRecentFirst(expenses, limit),
	}, nil
}

// Recent returns up to limit expenses of the month, most recent first.
func (a *AggregationEngine) Recent(ctx context.Context, year, month, limit int) ([]core.Expense, error) {
	if limit <= 0 {
		limit = DefaultDetailLimit
	}
	start, end, err := core.MonthBounds(year, month)
	if err != nil {
		return nil, err
	}
	expenses, err := a.store.QueryRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("month expenses: %w", err)
	}
	return mostRecentFirst(expenses, limit), nil
}

// MonthExpenses returns every expense of the month in date order.
func (a *AggregationEngine) MonthExpenses(ctx context.Context, year, month int) ([]core.Expense, error) {
	start, end, err := core.MonthBounds(year, month)
	if err != nil {
		return nil, err
	}
	return a.store.QueryRange(ctx, start, end)
}

// VendorBreakdown returns the month's vendor aggregate.
func (a *AggregationEngine) VendorBreakdown(ctx context.Context, year, month int) ([]core.GroupTotal, error) {
	start, end, err := core.MonthBounds(year, month)
	if err != nil {
		return nil, err
	}
	return a.store.Aggregate(ctx, start, end, core.GroupByVendor)
}

// MonthOverMonth compares the month total against the previous month.
func (a *AggregationEngine) MonthOverMonth(ctx context.Context, year, month int) (core.PeriodComparison, error) {
	curStart, curEnd, err := core.MonthBounds(year, month)
	if err != nil {
		return core.PeriodComparison{}, err
	}
	py, pm := core.PreviousMonth(year, month)
	prevStart, prevEnd, err := core.MonthBounds(py, pm)
	if err != nil {
		return core.PeriodComparison{}, err
	}
	return a.compare(ctx, curStart, curEnd, prevStart, prevEnd)
}

// WeekOverWeek compares the seven days ending on day against the seven days before.
func (a *AggregationEngine) WeekOverWeek(ctx context.Context, day core.Date) (core.PeriodComparison, error) {
	if day.IsZero() {
		day = core.Today()
	}
	curStart := day.AddDays(-6)
	prevEnd := curStart.AddDays(-1)
	prevStart := prevEnd.AddDays(-6)
	return a.compare(ctx, curStart, day, prevStart, prevEnd)
}

func (a *AggregationEngine) compare(ctx context.Context, curStart, curEnd, prevStart, prevEnd core.Date) (core.PeriodComparison, error) {
	current, err := a.store.Total(ctx, curStart, curEnd)
	if err != nil {
		return core.PeriodComparison{}, fmt.Errorf("current period total: %w", err)
	}
	previous, err := a.store.Total(ctx, prevStart, prevEnd)
	if err != nil {
		return core.PeriodComparison{}, fmt.Errorf("previous period total: %w", err)
	}
	return core.PeriodComparison{
		CurrentStart:  curStart,
		CurrentEnd:    curEnd,
		PreviousStart: prevStart,
		PreviousEnd:   prevEnd,
		Current:       current,
		Previous:      previous,
	}, nil
}

func head(groups []core.GroupTotal, n int) []core.GroupTotal {
	if n > 0 && len(groups) > n {
		return groups[:n]
	}
	return groups
}

// mostRecentFirst takes the last n of a date-ordered slice and reverses it.
func mostRecentFirst(expenses []core.Expense, n int) []core.Expense {
	if len(expenses) > n {
		expenses = expenses[len(expenses)-n:]
	}
	out := make([]core.Expense, len(expenses))
	for i, e := range expenses {
		out[len(expenses)-1-i] = e
	}
	return out
}
