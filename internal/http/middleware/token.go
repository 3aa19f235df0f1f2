package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// WebhookTokenHeader carries the shared secret configured on the chat gateway.
const WebhookTokenHeader = "X-Webhook-Token"

// RequireToken rejects requests whose header does not match expected. An
// empty expected token disables the check.
func RequireToken(header, expected string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get(header))
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				http.Error(w, "invalid webhook token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
