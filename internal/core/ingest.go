package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InboundMessage is a single message retrieved from the inbox.
type InboundMessage struct {
	ID         string
	Subject    string
	Sender     string
	Body       string
	ReceivedAt time.Time
}

// ExtractedExpense is the structured output of the extractor, the receipt
// reader and the email classifier. Amount is nil when none was found.
type ExtractedExpense struct {
	Date     *Date
	Vendor   string
	Amount   *decimal.Decimal
	Currency string
	Category string
	Notes    string
}

// EmailClassification is the classifier verdict for one message.
type EmailClassification struct {
	IsExpense  bool
	Confidence float64
	Reason     string
	Expense    ExtractedExpense
}

// SweepStats counts what one inbox sweep did.
type SweepStats struct {
	EmailsChecked int `json:"emails_checked"`
	ExpensesFound int `json:"expenses_found"`
	ExpensesSaved int `json:"expenses_saved"`
	Skipped       int `json:"skipped"`
}

// IntentKind is the top-level class of a chat message.
type IntentKind string

const (
	IntentRecordExpense IntentKind = "record_expense"
	IntentQuery         IntentKind = "query"
	IntentUnknown       IntentKind = "unknown"
)

// QueryKind names the analytical question asked by a query intent.
type QueryKind string

const (
	QuerySummary          QueryKind = "summary"
	QueryBudgetStatus     QueryKind = "budget_status"
	QueryRecent           QueryKind = "recent"
	QueryCategorySpending QueryKind = "category_spending"
	QueryCategories       QueryKind = "categories"
	QueryBudgets          QueryKind = "budgets"
)

// Intent is the NLU interpretation of a chat message.
type Intent struct {
	Kind     IntentKind
	Query    QueryKind
	Expense  ExtractedExpense
	Category string
	Year     int
	Month    int
	Limit    int
}
