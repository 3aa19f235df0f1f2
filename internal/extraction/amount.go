package extraction

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts Brazilian-formatted money ("1.234,56", "R$ 387,45") into a
// canonical decimal. A lone dot followed by exactly two digits ("387.45") is read
// as a decimal separator; any other dot is a thousands separator.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("extraction: empty amount")
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") == 1 && len(s)-strings.Index(s, ".") <= 3:
		// dot decimal with one or two places; three places is a thousands group
	default:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("extraction: parse amount %q: %w", raw, err)
	}
	return d, nil
}

// FormatAmount renders d the way bills print it: "1.234,56".
func FormatAmount(d decimal.Decimal) string {
	intPart, frac, _ := strings.Cut(d.StringFixed(2), ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")
	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)
	out := strings.Join(groups, ".") + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}
