package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"expensebot/internal/core"
)

const interpretPrompt = `You are a personal finance assistant. Today is %s.
Classify the user's message and respond with JSON only:
{
    "intent": "record_expense" | "query" | "unknown",
    "query": "summary" | "budget_status" | "recent" | "category_spending" | "categories" | "budgets" | null,
    "expense": {
        "date": "YYYY-MM-DD or null",
        "vendor": "merchant or null",
        "amount": number or null,
        "currency": "symbol or code or null",
        "category": "one word like Food, Transport, Shopping or null",
        "notes": "short note or null"
    },
    "category": "category asked about, or null",
    "year": number or null,
    "month": 1-12 or null,
    "limit": number or null
}

Use "record_expense" when the user reports a purchase ("I spent $20 on lunch").
Use "query" for questions about spending, budgets, categories or recent expenses.

Message:
%s`

type intentPayload struct {
	Intent   string          `json:"intent"`
	Query    *string         `json:"query"`
	Expense  *expensePayload `json:"expense"`
	Category *string         `json:"category"`
	Year     *int            `json:"year"`
	Month    *int            `json:"month"`
	Limit    *int            `json:"limit"`
}

// Interpret maps a chat message to a typed intent.
func (c *Client) Interpret(ctx context.Context, text string) (core.Intent, error) {
	prompt := fmt.Sprintf(interpretPrompt, core.Today().String(), text)
	content, err := c.completeJSON(ctx, "interpret", userMessage(prompt), 0.0, 400)
	if err != nil {
		return core.Intent{}, err
	}

	var p intentPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return core.Intent{}, &core.CollaboratorError{Collaborator: "openai interpret", Err: fmt.Errorf("parse JSON response: %w", err)}
	}
	return p.toIntent(text), nil
}

func (p intentPayload) toIntent(text string) core.Intent {
	in := core.Intent{Kind: core.IntentUnknown}
	switch core.IntentKind(strings.ToLower(strings.TrimSpace(p.Intent))) {
	case core.IntentRecordExpense:
		in.Kind = core.IntentRecordExpense
		if p.Expense != nil {
			in.Expense = p.Expense.toExtracted()
		}
		if in.Expense.Amount == nil {
			fb := FallbackExtract(text)
			in.Expense.Amount = fb.Amount
			if in.Expense.Currency == "" {
				in.Expense.Currency = fb.Currency
			}
		}
	case core.IntentQuery:
		in.Kind = core.IntentQuery
		in.Query = core.QueryKind(deref(p.Query))
		in.Category = deref(p.Category)
		if p.Year != nil && *p.Year > 0 {
			in.Year = *p.Year
		}
		if p.Month != nil && *p.Month >= 1 && *p.Month <= 12 {
			in.Month = *p.Month
		}
		if p.Limit != nil && *p.Limit > 0 {
			in.Limit = *p.Limit
		}
	}
	return in
}

// PatternNLU interprets messages without a model: anything carrying a
// currency amount is recorded, everything else is unknown.
type PatternNLU struct{}

func (PatternNLU) Interpret(_ context.Context, text string) (core.Intent, error) {
	x := FallbackExtract(text)
	if x.Amount == nil {
		return core.Intent{Kind: core.IntentUnknown}, nil
	}
	return core.Intent{Kind: core.IntentRecordExpense, Expense: x}, nil
}
