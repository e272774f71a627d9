// Package report turns aggregation output into user-facing reports: a text
// summary, a weekly spending series and a vendor ranking. The series are
// plain data; rendering them to charts is left to the client.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
)

const (
	// TextTopCategories caps the categories listed in the text summary.
	TextTopCategories = 8

	// DefaultTopVendors caps the vendor ranking.
	DefaultTopVendors = 10
)

// TextSummary renders the month summary, annotating categories that have a budget.
func TextSummary(summary core.MonthlySummary, budgets []core.Budget) string {
	byCategory := make(map[string]decimal.Decimal, len(budgets))
	for _, b := range budgets {
		byCategory[b.Category] = b.Amount
	}

	month := time.Date(summary.Year, time.Month(summary.Month), 1, 0, 0, 0, 0, time.UTC)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 Monthly Report: %s\n", month.Format("January 2006"))
	fmt.Fprintf(&sb, "Total spent: %s\n", core.FormatAmount(summary.Total))
	sb.WriteString("\nTop categories:")

	cats := summary.TopCategories
	if len(cats) > TextTopCategories {
		cats = cats[:TextTopCategories]
	}
	for _, g := range cats {
		if budget, ok := byCategory[g.Key]; ok {
			fmt.Fprintf(&sb, "\n• %s: %s / budget %s", g.Key, core.FormatAmount(g.Sum), core.FormatAmount(budget))
		} else {
			fmt.Fprintf(&sb, "\n• %s: %s", g.Key, core.FormatAmount(g.Sum))
		}
	}
	return sb.String()
}

// WeeklySeries sums daily spending into Monday-aligned weeks, ascending.
// Every week between the first and last expense gets a point, zero when
// nothing was spent. ok is false when there are no expenses.
func WeeklySeries(expenses []core.Expense) ([]core.WeekAmount, bool) {
	if len(expenses) == 0 {
		return nil, false
	}
	sums := make(map[string]decimal.Decimal)
	first := core.WeekStart(expenses[0].Date)
	last := first
	for _, e := range expenses {
		start := core.WeekStart(e.Date)
		key := start.String()
		if cur, ok := sums[key]; ok {
			sums[key] = cur.Add(e.Amount)
		} else {
			sums[key] = e.Amount
		}
		if start.Before(first.Time) {
			first = start
		}
		if start.After(last.Time) {
			last = start
		}
	}

	var series []core.WeekAmount
	for w := first; !w.After(last.Time); w = w.AddDays(7) {
		amount, ok := sums[w.String()]
		if !ok {
			amount = decimal.Zero
		}
		series = append(series, core.WeekAmount{WeekStart: w, Amount: amount})
	}
	return series, true
}

// VendorRanking keeps groups with a known vendor, in aggregate order,
// capped to topN. ok is false when nothing remains.
func VendorRanking(groups []core.GroupTotal, topN int) ([]core.VendorAmount, bool) {
	if topN <= 0 {
		topN = DefaultTopVendors
	}
	ranking := make([]core.VendorAmount, 0, topN)
	for _, g := range groups {
		if g.Missing {
			continue
		}
		ranking = append(ranking, core.VendorAmount{Vendor: g.Key, Amount: g.Sum})
		if len(ranking) == topN {
			break
		}
	}
	if len(ranking) == 0 {
		return nil, false
	}
	return ranking, true
}

// DataSource is what the composer reads from.
type DataSource interface {
	MonthlySummary(ctx context.Context, year, month int) (core.MonthlySummary, error)
	MonthExpenses(ctx context.Context, year, month int) ([]core.Expense, error)
	VendorBreakdown(ctx context.Context, year, month int) ([]core.GroupTotal, error)
}

// BudgetLister supplies the budgets used to annotate the text summary.
type BudgetLister interface {
	ListBudgets(ctx context.Context) ([]core.Budget, error)
}

// Report bundles the three views of one month. Weekly and Vendors are nil
// when there is no data to plot.
type Report struct {
	Year    int
	Month   int
	Text    string
	Weekly  []core.WeekAmount
	Vendors []core.VendorAmount
}

// Composer assembles a Report from the aggregation engine and the budgets.
type Composer struct {
	data    DataSource
	budgets BudgetLister
	topN    int
}

func NewComposer(data DataSource, budgets BudgetLister) *Composer {
	return &Composer{data: data, budgets: budgets, topN: DefaultTopVendors}
}

// Compose builds the report for year/month.
func (c *Composer) Compose(ctx context.Context, year, month int) (Report, error) {
	summary, err := c.data.MonthlySummary(ctx, year, month)
	if err != nil {
		return Report{}, fmt.Errorf("monthly summary: %w", err)
	}
	budgets, err := c.budgets.ListBudgets(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list budgets: %w", err)
	}
	expenses, err := c.data.MonthExpenses(ctx, year, month)
	if err != nil {
		return Report{}, fmt.Errorf("month expenses: %w", err)
	}
	vendors, err := c.data.VendorBreakdown(ctx, year, month)
	if err != nil {
		return Report{}, fmt.Errorf("vendor breakdown: %w", err)
	}

	r := Report{
		Year:  year,
		Month: month,
		Text:  TextSummary(summary, budgets),
	}
	if weekly, ok := WeeklySeries(expenses); ok {
		r.Weekly = weekly
	}
	if ranking, ok := VendorRanking(vendors, c.topN); ok {
		r.Vendors = ranking
	}

	slog.InfoContext(ctx, "Report composed",
		"period", core.PeriodLabel(year, month),
		"weeks", len(r.Weekly),
		"vendors", len(r.Vendors))
	return r, nil
}
