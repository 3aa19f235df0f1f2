package messaging

import (
	"errors"
	"strings"
)

const brazilCountryCode = "55"

// ErrInvalidPhone is returned for values that cannot be a Brazilian mobile/landline.
var ErrInvalidPhone = errors.New("messaging: invalid phone number")

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// NormalizePhone turns chat identifiers ("5581999990000@s.whatsapp.net",
// "(81) 99999-0000", "+55 81 99999-0000") into E.164 lead ids. Numbers without
// a country code are assumed Brazilian.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if at := strings.IndexByte(raw, '@'); at >= 0 {
		raw = raw[:at]
	}
	international := strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "00")
	digits := strings.TrimLeft(sanitizePhone(raw), "0")

	switch {
	case international && !strings.HasPrefix(digits, brazilCountryCode):
		if len(digits) < 8 || len(digits) > 15 {
			return "", ErrInvalidPhone
		}
		return "+" + digits, nil
	case (len(digits) == 12 || len(digits) == 13) && strings.HasPrefix(digits, brazilCountryCode):
	case !international && (len(digits) == 10 || len(digits) == 11):
		digits = brazilCountryCode + digits
	default:
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
