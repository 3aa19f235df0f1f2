package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// NamedSender pairs a Sender with the name used in logs and results.
type NamedSender struct {
	Name   string
	Sender Sender
}

// FailoverSender tries each configured sender in order until one succeeds.
type FailoverSender struct {
	senders []NamedSender
	logger  *logging.Logger
}

var _ Sender = (*FailoverSender)(nil)

// NewFailoverSender builds a failover chain. Nil senders are skipped.
func NewFailoverSender(logger *logging.Logger, senders ...NamedSender) *FailoverSender {
	if logger == nil {
		logger = logging.Default()
	}
	chain := make([]NamedSender, 0, len(senders))
	for _, s := range senders {
		if s.Sender != nil {
			chain = append(chain, s)
		}
	}
	return &FailoverSender{senders: chain, logger: logger}
}

// Len reports how many senders are in the chain.
func (f *FailoverSender) Len() int {
	if f == nil {
		return 0
	}
	return len(f.senders)
}

// Send tries the primary sender first, then each fallback in order.
func (f *FailoverSender) Send(ctx context.Context, msg OutboundMessage) (SendResult, error) {
	if f == nil || len(f.senders) == 0 {
		return SendResult{}, errors.New("messaging: failover chain has no senders")
	}
	var errs []error
	for i, s := range f.senders {
		if err := ctx.Err(); err != nil {
			return SendResult{}, err
		}
		res, err := s.Sender.Send(ctx, msg)
		if err == nil {
			if res.Provider == "" {
				res.Provider = s.Name
			}
			if i > 0 {
				f.logger.Info("message delivered by fallback sender", "provider", s.Name, "to", msg.To)
			}
			return res, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		if i+1 < len(f.senders) {
			f.logger.Warn("send failed; attempting fallback",
				"provider", s.Name,
				"fallback", f.senders[i+1].Name,
				"error", err,
				"to", msg.To,
			)
		}
	}
	f.logger.Error("all senders failed", "to", msg.To, "attempts", len(errs))
	return SendResult{}, fmt.Errorf("messaging: all senders failed: %w", errors.Join(errs...))
}
