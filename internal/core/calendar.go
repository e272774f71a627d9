package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthBounds returns the first and last calendar day of the given month.
func MonthBounds(year, month int) (Date, Date, error) {
	if month < 1 || month > 12 {
		return Date{}, Date{}, &ValidationError{
			Field:   "month",
			Message: fmt.Sprintf("month %d out of range", month),
			Hint:    "Use a month between 1 and 12",
		}
	}
	if year < 1 || year > 9999 {
		return Date{}, Date{}, &ValidationError{
			Field:   "year",
			Message: fmt.Sprintf("year %d out of range", year),
		}
	}
	first := NewDate(year, month, 1)
	// Day 0 of the following month is the last day of this one.
	last := Date{Time: time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)}
	return first, last, nil
}

// WeekStart returns the Monday on or before d.
func WeekStart(d Date) Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// CurrentYearMonth returns the current UTC year and month.
func CurrentYearMonth() (int, int) {
	now := time.Now().UTC()
	return now.Year(), int(now.Month())
}

// ParseYearMonth parses a "YYYY-MM" period string.
func ParseYearMonth(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return 0, 0, &ValidationError{
			Field:   "period",
			Message: fmt.Sprintf("invalid period %q", s),
			Hint:    "Use YYYY-MM, for example 2024-03",
		}
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, &ValidationError{Field: "period", Message: fmt.Sprintf("invalid year in %q", s), Hint: "Use YYYY-MM, for example 2024-03"}
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, &ValidationError{Field: "period", Message: fmt.Sprintf("invalid month in %q", s), Hint: "Use YYYY-MM, for example 2024-03"}
	}
	return year, month, nil
}

// PreviousMonth returns the month preceding year/month.
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// PeriodLabel formats year/month as "YYYY-MM".
func PeriodLabel(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
