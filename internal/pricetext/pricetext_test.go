package pricetext

import (
	"strconv"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"1 234,56 ₽", 1234.56},
		{"2.500.00", 2500.00},
		{"1,234.56", 1234.56},
		{"€25.50", 25.50},
		{"12 990 ₽", 12990},
		{"1 499 ₽", 1499},
		{"100", 100},
	}

	for _, tt := range tests {
		result := Parse(tt.input)
		if result != tt.expected {
			t.Errorf("Parse(%q) = %v, expected %v", tt.input, result, tt.expected)
		}
	}
}

func TestParseAbsent(t *testing.T) {
	for _, input := range []string{"", "—", "нет в наличии", ".", "ERR"} {
		if v := Parse(input); !IsAbsent(v) {
			t.Errorf("Parse(%q) = %v, expected Absent", input, v)
		}
	}
}

func TestParseIdempotent(t *testing.T) {
	inputs := []string{"1 234,56 ₽", "2.500.00", "", "7", "0,5", "abc"}
	for _, input := range inputs {
		first := Parse(input)
		second := Parse(strconv.FormatFloat(first, 'f', -1, 64))
		if first != second && !(IsAbsent(first) && IsAbsent(second)) {
			t.Errorf("Parse not idempotent for %q: %v then %v", input, first, second)
		}
	}
}

func TestFormatRub(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0 ₽"},
		{999, "999 ₽"},
		{1000, "1 000 ₽"},
		{1200, "1 200 ₽"},
		{1234567.4, "1 234 567 ₽"},
	}
	for _, tt := range tests {
		if got := FormatRub(tt.input); got != tt.expected {
			t.Errorf("FormatRub(%v) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestWithVAT(t *testing.T) {
	if got := WithVAT("1 000 ₽"); got != "1 200 ₽" {
		t.Errorf("WithVAT = %q, expected %q", got, "1 200 ₽")
	}
	if got := WithVAT(""); got != "" {
		t.Errorf("WithVAT(empty) = %q, expected empty", got)
	}
	if got := WithVAT("0"); got != "" {
		t.Errorf("WithVAT(0) = %q, expected empty", got)
	}
}
