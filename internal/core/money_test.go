package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{" 2.50 ", "2.50", true},
		{"1000000000000.99", "1000000000000.99", true},
		{"1.005", "", false}, // sub-cent precision is rejected, not rounded
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || FormatAmount(got) != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, FormatAmount(got), err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestParseSignedAmount(t *testing.T) {
	for in, want := range map[string]string{"0": "0.00", "-12.5": "-12.50", "1000": "1000.00"} {
		got, err := ParseSignedAmount(in)
		if err != nil || FormatAmount(got) != want {
			t.Fatalf("%q expected %s, got %s (err=%v)", in, want, FormatAmount(got), err)
		}
	}
	for _, in := range []string{"", "x", "1.234"} {
		if _, err := ParseSignedAmount(in); !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected validation error, got %v", in, err)
		}
	}
}
