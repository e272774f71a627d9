package services

import (
	"expensebot/internal/core"
)

// Serializable views returned by the chat-facing operations. Monetary
// fields are rounded to two decimals here and nowhere earlier.
type (
	ExpenseView struct {
		ID       int64   `json:"id,omitempty"`
		Date     string  `json:"date"`
		Vendor   string  `json:"vendor"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Category string  `json:"category"`
		Source   string  `json:"source,omitempty"`
		Notes    string  `json:"notes,omitempty"`
	}

	RecordResult struct {
		Status  string      `json:"status"`
		Expense ExpenseView `json:"expense"`
	}

	CategoryAmountView struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
		Count    int     `json:"count"`
	}

	VendorAmountView struct {
		Vendor string  `json:"vendor"`
		Amount float64 `json:"amount"`
	}

	SummaryView struct {
		Period     string               `json:"period"`
		TotalSpent float64              `json:"total_spent"`
		ByCategory []CategoryAmountView `json:"by_category"`
		TopVendors []VendorAmountView   `json:"top_vendors"`
	}

	BudgetStatusView struct {
		Category   string   `json:"category"`
		Budget     *float64 `json:"budget"`
		Spent      float64  `json:"spent"`
		Remaining  *float64 `json:"remaining"`
		OverBudget bool     `json:"over_budget"`
	}

	TransactionView struct {
		Date   string  `json:"date"`
		Vendor string  `json:"vendor"`
		Amount float64 `json:"amount"`
	}

	CategorySpendingView struct {
		Category         string            `json:"category"`
		Period           string            `json:"period"`
		Total            float64           `json:"total"`
		TransactionCount int               `json:"transaction_count"`
		Transactions     []TransactionView `json:"transactions"`
	}

	CategoriesView struct {
		Categories []string `json:"categories"`
	}

	BudgetView struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
		Period   string  `json:"period"`
	}

	ComparisonView struct {
		CurrentStart  string   `json:"current_start"`
		CurrentEnd    string   `json:"current_end"`
		PreviousStart string   `json:"previous_start"`
		PreviousEnd   string   `json:"previous_end"`
		Current       float64  `json:"current"`
		Previous      float64  `json:"previous"`
		Delta         float64  `json:"delta"`
		ChangePercent *float64 `json:"change_percent"`
	}
)

const unknownVendor = "Unknown"

func newExpenseView(e core.Expense) ExpenseView {
	vendor := e.Vendor
	if vendor == "" {
		vendor = unknownVendor
	}
	category := e.Category
	if category == "" {
		category = core.DefaultCategory
	}
	return ExpenseView{
		ID:       e.ID,
		Date:     e.Date.String(),
		Vendor:   vendor,
		Amount:   core.Round2(e.Amount),
		Currency: e.Currency,
		Category: category,
		Source:   string(e.Source),
		Notes:    e.Notes,
	}
}

func newSummaryView(s core.MonthlySummary) SummaryView {
	view := SummaryView{
		Period:     s.Period(),
		TotalSpent: core.Round2(s.Total),
		ByCategory: make([]CategoryAmountView, 0, len(s.TopCategories)),
		TopVendors: make([]VendorAmountView, 0, len(s.TopVendors)),
	}
	for _, g := range s.TopCategories {
		view.ByCategory = append(view.ByCategory, CategoryAmountView{Category: g.Key, Amount: core.Round2(g.Sum), Count: g.Count})
	}
	for _, g := range s.TopVendors {
		view.TopVendors = append(view.TopVendors, VendorAmountView{Vendor: g.Key, Amount: core.Round2(g.Sum)})
	}
	return view
}

func newBudgetStatusViews(lines []core.BudgetLine) []BudgetStatusView {
	views := make([]BudgetStatusView, 0, len(lines))
	for _, l := range lines {
		v := BudgetStatusView{
			Category:   l.Category,
			Spent:      core.Round2(l.Spent),
			OverBudget: l.OverBudget,
		}
		if l.Budget != nil {
			b := core.Round2(*l.Budget)
			v.Budget = &b
		}
		if l.Remaining != nil {
			r := core.Round2(*l.Remaining)
			v.Remaining = &r
		}
		views = append(views, v)
	}
	return views
}

func newCategorySpendingView(d core.CategoryDetail) CategorySpendingView {
	view := CategorySpendingView{
		Category:         d.Category,
		Period:           core.PeriodLabel(d.Year, d.Month),
		Total:            core.Round2(d.Total),
		TransactionCount: d.Count,
		Transactions:     make([]TransactionView, 0, len(d.Transactions)),
	}
	for _, e := range d.Transactions {
		view.Transactions = append(view.Transactions, TransactionView{
			Date:   e.Date.String(),
			Vendor: e.Vendor,
			Amount: core.Round2(e.Amount),
		})
	}
	return view
}

func newComparisonView(c core.PeriodComparison) ComparisonView {
	view := ComparisonView{
		CurrentStart:  c.CurrentStart.String(),
		CurrentEnd:    c.CurrentEnd.String(),
		PreviousStart: c.PreviousStart.String(),
		PreviousEnd:   c.PreviousEnd.String(),
		Current:       core.Round2(c.Current),
		Previous:      core.Round2(c.Previous),
		Delta:         core.Round2(c.Delta()),
	}
	if pct, ok := c.ChangePercent(); ok {
		view.ChangePercent = &pct
	}
	return view
}
