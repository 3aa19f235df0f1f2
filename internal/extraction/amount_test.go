package extraction

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0.5":     "0,50",
		"487.35":  "487,35",
		"1487.35": "1.487,35",
		"1234567": "1.234.567,00",
		"-200":    "-200,00",
	}
	for in, want := range cases {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatAmount(%q) = %q, want %q", in, got, want)
		}
	}
}
