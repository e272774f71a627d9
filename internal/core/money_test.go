package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"$8.75", "8.75", true},
		{"€ 3,5", "3.5", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"0.001", "0.001", true},
		{"-1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestRound2AndFormat(t *testing.T) {
	d := decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))
	if Round2(d) != 0.3 {
		t.Fatalf("expected 0.3, got %v", Round2(d))
	}
	if got := FormatAmount(decimal.RequireFromString("12.345")); got != "12.35" {
		t.Fatalf("expected 12.35, got %s", got)
	}
	if got := FormatAmount(decimal.Zero); got != "0.00" {
		t.Fatalf("expected 0.00, got %s", got)
	}
}

func TestSumAmountsKeepsPrecision(t *testing.T) {
	expenses := []Expense{
		{Amount: decimal.RequireFromString("0.005")},
		{Amount: decimal.RequireFromString("0.005")},
		{Amount: decimal.RequireFromString("10")},
	}
	if got := SumAmounts(expenses); !got.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("expected 10.01, got %s", got)
	}
}
