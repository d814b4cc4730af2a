package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"1", "1"},
		{"1.23", "1.23"},
		{"1,23", "1.23"},
		{" 2,50 ", "2.5"},
		{"1 234,56", "1234.56"},
		{"12 345 678", "12345678"},
		{"-1 000", "-1000"},
		{"-0.01", "-0.01"},
		{"1.005", "1.01"}, // half-up on the third decimal
		{"", "0"},
		{"abc", "0"},
		{"1.2.3", "0"},
		{"--5", "0"},
	}
	for _, tc := range cases {
		want := decimal.RequireFromString(tc.out)
		if got := ParseAmount(tc.in); !got.Equal(want) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, got, want)
		}
	}
}

func TestFormatForEdit(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"0", "0.00"},
		{"1", "1.00"},
		{"1.5", "1.50"},
		{"-3.07", "-3.07"},
		{"1234567.89", "1234567.89"},
	}
	for _, tc := range cases {
		d := decimal.RequireFromString(tc.in)
		if got := FormatForEdit(d); got != tc.out {
			t.Fatalf("FormatForEdit(%s) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestEditRoundTrip(t *testing.T) {
	// ParseAmount(FormatForEdit(x)) must reproduce x exactly for two-decimal
	// values, including negatives and values that would drift as floats.
	values := []string{"0", "0.01", "-0.01", "1234.56", "-99999.99", "0.10", "100.30"}
	for _, v := range values {
		x := decimal.RequireFromString(v)
		if got := ParseAmount(FormatForEdit(x)); !got.Equal(x) {
			t.Fatalf("round trip of %s came back as %s", x, got)
		}
	}
}

func TestFormatForDisplay(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"0", "0 ₽"},
		{"150", "150 ₽"},
		{"1234.5", "1 234.5 ₽"},
		{"12345678.99", "12 345 678.99 ₽"},
		{"-1000", "-1 000 ₽"},
	}
	for _, tc := range cases {
		d := decimal.RequireFromString(tc.in)
		if got := FormatForDisplay(d); got != tc.out {
			t.Fatalf("FormatForDisplay(%s) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
