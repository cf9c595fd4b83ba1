package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.5", 150, true},
		{" 2.50 ", 250, true},
		{"$9.99", 999, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1.\u0665", 0, false}, // Arabic-Indic five in the fraction
		{"\u0661\u0662", 0, false},
		{"\uff11.50", 0, false}, // fullwidth one
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"22", "$22.00"},
		{"9.999", "$10.00"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"-1", "-$1.00"},
	}
	for _, tc := range cases {
		if got := FormatUSD(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Errorf("FormatUSD(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMoneyDecimalRoundTrip(t *testing.T) {
	m := Money{Cents: 12345}
	if got := m.Decimal().String(); got != "123.45" {
		t.Fatalf("Decimal() = %s", got)
	}
	if got := MoneyFromDecimal(decimal.RequireFromString("10.005")); got.Cents != 1001 {
		t.Fatalf("MoneyFromDecimal() = %d, want 1001", got.Cents)
	}
}
