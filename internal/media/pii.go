package media

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cpfRe   = regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)
	phoneRe = regexp.MustCompile(`(?:\+?55[\s.-]?)?(?:\(\d{2}\)|\b\d{2})[\s.-]?9?\d{4}[\s.-]\d{4}\b`)
)

// HashPhone returns the hex-encoded SHA-256 hash of a phone number.
func HashPhone(phone string) string {
	h := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(h[:])
}

// ScrubPII masks e-mails, CPF numbers and phone numbers. Names, addresses and
// amounts are kept so archived bills stay useful for extraction regression sets.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = cpfRe.ReplaceAllString(text, "[CPF]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}
