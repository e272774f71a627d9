package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"expensebot/internal/core"
	"expensebot/internal/inbox"
)

// promptBodyChars caps the email body quoted in the classification prompt.
const promptBodyChars = 1500

const classifyPrompt = `Analyze this email and determine if it contains information about an expense, purchase, payment, receipt, invoice, or subscription charge.

Email Subject: %s
From: %s
Body:
%s

Respond with JSON only:
{
    "is_expense": true/false,
    "confidence": 0.0-1.0,
    "reason": "brief explanation",
    "expense_data": {
        "date": "YYYY-MM-DD or null",
        "vendor": "company/store name",
        "amount": number or null,
        "currency": "USD/EUR/etc or null",
        "category": "Food/Transport/Shopping/Subscription/Utilities/Entertainment/Other",
        "notes": "brief description"
    }
}

Only set is_expense to true if there's a clear expense with an amount. Marketing emails, newsletters, and promotional content are NOT expenses.`

type classificationPayload struct {
	IsExpense   bool            `json:"is_expense"`
	Confidence  float64         `json:"confidence"`
	Reason      string          `json:"reason"`
	ExpenseData *expensePayload `json:"expense_data"`
}

// ClassifyEmail decides whether msg reports an expense and extracts it.
func (c *Client) ClassifyEmail(ctx context.Context, msg core.InboundMessage) (core.EmailClassification, error) {
	prompt := fmt.Sprintf(classifyPrompt, msg.Subject, msg.Sender, inbox.Truncate(msg.Body, promptBodyChars))

	content, err := c.completeJSON(ctx, "classify", userMessage(prompt), 0.1, 500)
	if err != nil {
		return core.EmailClassification{}, err
	}

	var p classificationPayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return core.EmailClassification{}, &core.CollaboratorError{Collaborator: "openai classify", Err: fmt.Errorf("parse JSON response: %w", err)}
	}

	cls := core.EmailClassification{
		IsExpense:  p.IsExpense,
		Confidence: clamp01(p.Confidence),
		Reason:     p.Reason,
	}
	if p.ExpenseData != nil {
		cls.Expense = p.ExpenseData.toExtracted()
	}
	return cls, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
