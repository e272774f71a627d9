package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"expensebot/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		want    MonthParams
		wantErr bool
	}{
		{"empty means current", url.Values{}, MonthParams{}, false},
		{"year and month", url.Values{"year": {"2024"}, "month": {"6"}}, MonthParams{Year: 2024, Month: 6}, false},
		{"combined month", url.Values{"month": {"2023-12"}}, MonthParams{Year: 2023, Month: 12}, false},
		{"month only", url.Values{"month": {"3"}}, MonthParams{Month: 3}, false},
		{"month out of range", url.Values{"month": {"13"}}, MonthParams{}, true},
		{"month not a number", url.Values{"month": {"abc"}}, MonthParams{}, true},
		{"bad combined month", url.Values{"month": {"2024-3"}}, MonthParams{}, true},
		{"bad year", url.Values{"year": {"twenty"}}, MonthParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonthParams(tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonthParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !core.IsValidation(err) {
				t.Errorf("error %v is not a ValidationError", err)
			}
			if got != tt.want {
				t.Errorf("ParseMonthParams() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 10, false},
		{"5", 5, false},
		{"1000", 100, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLimit(url.Values{"limit": {tt.in}})
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLimit(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLimit(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseIDPathValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/expenses/42/category", nil)
	req.SetPathValue("id", "42")
	id, err := ParseIDPathValue(req, "id")
	if err != nil || id != 42 {
		t.Fatalf("ParseIDPathValue() = %d, %v", id, err)
	}

	req.SetPathValue("id", "0")
	if _, err := ParseIDPathValue(req, "id"); !core.IsValidation(err) {
		t.Errorf("expected validation error for id 0, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Text string `json:"text"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"text": "hi"}`, ""},
		{"empty", ``, "request body is empty"},
		{"unknown field", `{"txt": "hi"}`, "unknown field"},
		{"two objects", `{"text": "a"} {"text": "b"}`, "single JSON object"},
		{"too large", `{"text": "` + strings.Repeat("x", maxJSONBody) + `"}`, "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(httptest.NewRecorder(), req, &p)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("DecodeJSON() error = %v", err)
				}
				if p.Text != "hi" {
					t.Errorf("Text = %q", p.Text)
				}
				return
			}
			var ve *core.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(ve.Message, tt.wantErr) {
				t.Errorf("message %q does not contain %q", ve.Message, tt.wantErr)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Food\x00\x07 \n"); got != "Food" {
		t.Errorf("sanitizeInput() = %q", got)
	}
	if got := sanitizeInput("line1\nline2"); got != "line1\nline2" {
		t.Errorf("newlines should survive, got %q", got)
	}
}
