// This file implements parsing and validation of query parameters,
// path values and JSON bodies shared by the handlers.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expensebot/internal/core"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// MonthParams holds parsed year/month values. Zero means "current".
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month, or a combined month=YYYY-MM,
// from query. Missing values stay zero; malformed ones are a
// ValidationError.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	var params MonthParams

	month := strings.TrimSpace(query.Get("month"))
	if strings.Contains(month, "-") {
		y, m, err := core.ParseYearMonth(month)
		if err != nil {
			return MonthParams{}, core.NewValidationError("month", fmt.Sprintf("invalid month %q", month), "Use YYYY-MM, for example 2024-03")
		}
		return MonthParams{Year: y, Month: m}, nil
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, core.NewValidationError("year", fmt.Sprintf("invalid year %q", v), "Use a four-digit year, for example 2024")
		}
		params.Year = y
	}
	if month != "" {
		m, err := strconv.Atoi(month)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, core.NewValidationError("month", fmt.Sprintf("invalid month %q", month), "Use a month number from 1 to 12")
		}
		params.Month = m
	}
	return params, nil
}

// ParseLimit reads the limit parameter, defaulting to 10 and capping at 100.
func ParseLimit(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return defaultRecentLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, core.NewValidationError("limit", fmt.Sprintf("invalid limit %q", v), "Use a positive number, for example 5")
	}
	return min(n, maxRecentLimit), nil
}

// ParseIDPathValue reads a positive integer path value.
func ParseIDPathValue(r *http.Request, name string) (int64, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, core.NewValidationError(name, fmt.Sprintf("invalid %s %q", name, v), "Use the numeric expense id")
	}
	return id, nil
}

// DecodeJSON strictly decodes a single JSON object from the body.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return core.NewValidationError("body", "request body too large", "")
		case errors.Is(err, io.EOF):
			return core.NewValidationError("body", "request body is empty", "Send a JSON object")
		default:
			return core.NewValidationError("body", "malformed JSON: "+err.Error(), "Send a JSON object")
		}
	}
	if dec.More() {
		return core.NewValidationError("body", "request body must contain a single JSON object", "")
	}
	return nil
}

// sanitizeInput trims s and drops control characters other than tab and
// newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
