package core

import "testing"

func TestMonthBounds(t *testing.T) {
	cases := []struct {
		year, month int
		first, last string
	}{
		{2024, 2, "2024-02-01", "2024-02-29"},
		{2023, 2, "2023-02-01", "2023-02-28"},
		{2024, 12, "2024-12-01", "2024-12-31"},
		{2024, 4, "2024-04-01", "2024-04-30"},
		{2000, 2, "2000-02-01", "2000-02-29"},
		{1900, 2, "1900-02-01", "1900-02-28"},
	}
	for _, tc := range cases {
		first, last, err := MonthBounds(tc.year, tc.month)
		if err != nil {
			t.Fatalf("%d-%d unexpected error: %v", tc.year, tc.month, err)
		}
		if first.String() != tc.first || last.String() != tc.last {
			t.Fatalf("%d-%d got [%s, %s], want [%s, %s]", tc.year, tc.month, first, last, tc.first, tc.last)
		}
	}

	for _, m := range []int{0, 13, -1} {
		if _, _, err := MonthBounds(2024, m); !IsValidation(err) {
			t.Fatalf("month %d expected ValidationError, got %v", m, err)
		}
	}
}

func TestWeekStart(t *testing.T) {
	cases := map[string]string{
		"2024-03-04": "2024-03-04", // Monday
		"2024-03-06": "2024-03-04", // Wednesday
		"2024-03-10": "2024-03-04", // Sunday
		"2024-03-11": "2024-03-11",
		"2024-01-01": "2024-01-01",
		"2023-01-01": "2022-12-26", // Sunday crossing the year
	}
	for in, want := range cases {
		d, err := ParseDate(in)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if got := WeekStart(d).String(); got != want {
			t.Fatalf("WeekStart(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestParseYearMonth(t *testing.T) {
	y, m, err := ParseYearMonth("2024-03")
	if err != nil || y != 2024 || m != 3 {
		t.Fatalf("got %d-%d err=%v", y, m, err)
	}
	for _, bad := range []string{"2024-13", "2024-3", "march", "", "2024/03"} {
		if _, _, err := ParseYearMonth(bad); !IsValidation(err) {
			t.Fatalf("%q expected ValidationError, got %v", bad, err)
		}
	}
}

func TestPreviousMonth(t *testing.T) {
	if y, m := PreviousMonth(2024, 1); y != 2023 || m != 12 {
		t.Fatalf("got %d-%d", y, m)
	}
	if y, m := PreviousMonth(2024, 7); y != 2024 || m != 6 {
		t.Fatalf("got %d-%d", y, m)
	}
}
