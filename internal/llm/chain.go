package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// NamedClient labels a provider in a Chain.
type NamedClient struct {
	Name   string
	Client Client
}

// Chain tries providers in order and returns the first successful response.
type Chain struct {
	clients []NamedClient
	logger  *logging.Logger
}

var _ Client = (*Chain)(nil)

func NewChain(logger *logging.Logger, clients ...NamedClient) *Chain {
	if logger == nil {
		logger = logging.Default()
	}
	kept := make([]NamedClient, 0, len(clients))
	for _, c := range clients {
		if c.Client != nil {
			kept = append(kept, c)
		}
	}
	return &Chain{clients: kept, logger: logger}
}

// Len reports the configured provider count.
func (c *Chain) Len() int { return len(c.clients) }

func (c *Chain) Complete(ctx context.Context, req Request) (Response, error) {
	if len(c.clients) == 0 {
		return Response{}, ErrNoProviders
	}
	var errs []error
	for i, nc := range c.clients {
		resp, err := nc.Client.Complete(ctx, req)
		if err == nil {
			if resp.Provider == "" {
				resp.Provider = nc.Name
			}
			if i > 0 {
				c.logger.Info("fallback LLM succeeded after primary failure", "provider", nc.Name)
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		c.logger.Warn("LLM provider failed", "provider", nc.Name, "error", err, "remaining", len(c.clients)-i-1)
		errs = append(errs, fmt.Errorf("%s: %w", nc.Name, err))
	}
	return Response{}, fmt.Errorf("llm: all providers failed: %w", errors.Join(errs...))
}
