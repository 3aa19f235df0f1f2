package messaging

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedSender throttles outbound messages to stay under gateway quotas.
type RateLimitedSender struct {
	next    Sender
	limiter *rate.Limiter
}

var _ Sender = (*RateLimitedSender)(nil)

// NewRateLimitedSender allows perSecond messages with the given burst. A
// non-positive perSecond disables throttling.
func NewRateLimitedSender(next Sender, perSecond float64, burst int) *RateLimitedSender {
	if next == nil {
		panic("messaging: rate limited sender requires a sender")
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedSender{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Send waits for a token, then delegates.
func (s *RateLimitedSender) Send(ctx context.Context, msg OutboundMessage) (SendResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return SendResult{}, fmt.Errorf("messaging: rate limit wait: %w", err)
	}
	return s.next.Send(ctx, msg)
}
