package core

import "github.com/shopspring/decimal"

// GroupBy selects the dimension an aggregate is keyed on.
type GroupBy int

const (
	GroupByCategory GroupBy = iota
	GroupByVendor
)

func (g GroupBy) String() string {
	switch g {
	case GroupByCategory:
		return "category"
	case GroupByVendor:
		return "vendor"
	}
	return "unknown"
}

// GroupTotal is one row of an aggregate. Missing is set when the key column
// was null and Key was substituted with DefaultCategory.
type GroupTotal struct {
	Key     string
	Sum     decimal.Decimal
	Count   int
	Missing bool
}

// MonthlySummary is the total and top groupings for a calendar month.
type MonthlySummary struct {
	Year          int
	Month         int
	Total         decimal.Decimal
	Count         int
	TopCategories []GroupTotal
	TopVendors    []GroupTotal
}

// Period formats the summary month as "YYYY-MM".
func (s MonthlySummary) Period() string {
	return PeriodLabel(s.Year, s.Month)
}

// BudgetLine is one category of a budget status report. Budget and
// Remaining are nil for categories with spending but no budget.
type BudgetLine struct {
	Category   string
	Spent      decimal.Decimal
	Budget     *decimal.Decimal
	Remaining  *decimal.Decimal
	OverBudget bool
}

// CategoryDetail is the spending of one category in one month.
type CategoryDetail struct {
	Category     string
	Year         int
	Month        int
	Total        decimal.Decimal
	Count        int
	Transactions []Expense
}

// WeekAmount is one point of a weekly series; WeekStart is always a Monday.
type WeekAmount struct {
	WeekStart Date
	Amount    decimal.Decimal
}

// VendorAmount is one row of a vendor ranking.
type VendorAmount struct {
	Vendor string
	Amount decimal.Decimal
}

// PeriodComparison compares spending of two adjacent periods.
type PeriodComparison struct {
	CurrentStart  Date
	CurrentEnd    Date
	PreviousStart Date
	PreviousEnd   Date
	Current       decimal.Decimal
	Previous      decimal.Decimal
}

// Delta is current minus previous.
func (c PeriodComparison) Delta() decimal.Decimal {
	return c.Current.Sub(c.Previous)
}

// ChangePercent is the relative change in percent; ok is false when the
// previous period had no spending.
func (c PeriodComparison) ChangePercent() (float64, bool) {
	if c.Previous.IsZero() {
		return 0, false
	}
	pct, _ := c.Delta().Div(c.Previous).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return pct, true
}
