package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
)

const extractPrompt = `Extract expense data as strict JSON with keys:
date (YYYY-MM-DD or blank), vendor, amount (number), currency (symbol or code), category (one-word like Food, Transport, SaaS, Utilities, Uncategorized), notes.

Text:
%s

Return ONLY valid JSON object.`

const receiptPrompt = `This image is a purchase receipt. Extract expense data as strict JSON with keys:
date (YYYY-MM-DD or blank), vendor, amount (the grand total as a number, or null if unreadable), currency (symbol or code), category (one-word like Food, Transport, Shopping, Utilities, Uncategorized), notes.

Return ONLY valid JSON object.`

// fallbackAmount finds the first currency-prefixed amount in free text.
var fallbackAmount = regexp.MustCompile(`([$€£])\s?(\d+(?:\.\d{1,2})?)`)

// expensePayload is the JSON shape the model is asked to produce.
type expensePayload struct {
	Date     *string          `json:"date"`
	Vendor   *string          `json:"vendor"`
	Amount   *decimal.Decimal `json:"amount"`
	Currency *string          `json:"currency"`
	Category *string          `json:"category"`
	Notes    *string          `json:"notes"`
}

func (p expensePayload) toExtracted() core.ExtractedExpense {
	x := core.ExtractedExpense{
		Vendor:   deref(p.Vendor),
		Currency: deref(p.Currency),
		Category: deref(p.Category),
		Notes:    deref(p.Notes),
	}
	if p.Amount != nil && !p.Amount.IsNegative() {
		a := *p.Amount
		x.Amount = &a
	}
	if d, err := core.ParseDate(deref(p.Date)); err == nil {
		x.Date = &d
	}
	return x
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

// ExtractExpense turns free text into a structured expense. When the model
// is unavailable or answers with invalid JSON, the amount is recovered with
// a currency-symbol pattern and the whole text is kept as notes.
func (c *Client) ExtractExpense(ctx context.Context, text string) (core.ExtractedExpense, error) {
	content, err := c.completeJSON(ctx, "extract", userMessage(fmt.Sprintf(extractPrompt, text)), 0.0, 300)
	if err == nil {
		var p expensePayload
		if err = json.Unmarshal([]byte(content), &p); err == nil {
			return p.toExtracted(), nil
		}
	}
	slog.WarnContext(ctx, "Expense extraction fell back to pattern match", "error", err)
	return FallbackExtract(text), nil
}

// FallbackExtract recovers what it can from text without a model.
func FallbackExtract(text string) core.ExtractedExpense {
	x := core.ExtractedExpense{
		Category: core.DefaultCategory,
		Notes:    strings.TrimSpace(text),
	}
	m := fallbackAmount.FindStringSubmatch(text)
	if m == nil {
		return x
	}
	if amount, err := decimal.NewFromString(m[2]); err == nil {
		x.Amount = &amount
		x.Currency = m[1]
	}
	return x
}

// ReadReceipt extracts the expense printed on a receipt image.
func (c *Client) ReadReceipt(ctx context.Context, image []byte, mimeType string) (core.ExtractedExpense, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	messages := []chatMessage{
		{Role: "system", Content: "You read purchase receipts. Respond with ONLY a valid JSON object."},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: receiptPrompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		}},
	}

	content, err := c.completeJSON(ctx, "receipt", messages, 0.0, 300)
	if err != nil {
		return core.ExtractedExpense{}, err
	}
	var p expensePayload
	if err := json.Unmarshal([]byte(content), &p); err != nil {
		return core.ExtractedExpense{}, &core.CollaboratorError{Collaborator: "openai receipt", Err: fmt.Errorf("parse JSON response: %w", err)}
	}
	return p.toExtracted(), nil
}
