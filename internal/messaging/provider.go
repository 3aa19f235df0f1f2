package messaging

import (
	"fmt"
	"strings"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const (
	// ProviderPrimary is the main chat gateway.
	ProviderPrimary = "chatapi"
	// ProviderFallback is the secondary gateway used when the primary fails.
	ProviderFallback = "chatapi-fallback"
	// ProviderMemory records messages locally.
	ProviderMemory = "memory"
)

// ProviderSelectionConfig captures the credentials required to build outbound senders.
type ProviderSelectionConfig struct {
	PrimaryBaseURL  string
	PrimaryToken    string
	Instance        string
	FallbackBaseURL string
	FallbackToken   string
	RatePerSecond   float64
	Burst           int
}

// BuildSender instantiates the outbound sender chain. It returns the sender, a
// description of the selected providers, and the primary client (nil when the
// memory sender is used) so callers can reuse it as a MediaFetcher.
func BuildSender(cfg ProviderSelectionConfig, logger *logging.Logger) (Sender, string, *ChatAPIClient) {
	if logger == nil {
		logger = logging.Default()
	}

	var chain []NamedSender
	var primary *ChatAPIClient
	if cfg.PrimaryBaseURL != "" && cfg.PrimaryToken != "" {
		client, err := NewChatAPIClient(ChatAPIConfig{
			Name:     ProviderPrimary,
			BaseURL:  cfg.PrimaryBaseURL,
			Token:    cfg.PrimaryToken,
			Instance: cfg.Instance,
		}, logger)
		if err != nil {
			logger.Warn("primary chat gateway disabled", "error", err)
		} else {
			primary = client
			chain = append(chain, NamedSender{Name: ProviderPrimary, Sender: client})
		}
	}
	if cfg.FallbackBaseURL != "" && cfg.FallbackToken != "" {
		client, err := NewChatAPIClient(ChatAPIConfig{
			Name:     ProviderFallback,
			BaseURL:  cfg.FallbackBaseURL,
			Token:    cfg.FallbackToken,
			Instance: cfg.Instance,
		}, logger)
		if err != nil {
			logger.Warn("fallback chat gateway disabled", "error", err)
		} else {
			chain = append(chain, NamedSender{Name: ProviderFallback, Sender: client})
		}
	}

	var sender Sender
	var names []string
	for _, s := range chain {
		names = append(names, s.Name)
	}
	switch len(chain) {
	case 0:
		logger.Warn("no chat gateway configured; outbound messages are recorded in memory")
		sender = NewMemorySender()
		names = []string{ProviderMemory}
	case 1:
		sender = chain[0].Sender
	default:
		sender = NewFailoverSender(logger, chain...)
	}

	if cfg.RatePerSecond > 0 {
		sender = NewRateLimitedSender(sender, cfg.RatePerSecond, cfg.Burst)
	}
	desc := strings.Join(names, "+")
	if cfg.RatePerSecond > 0 {
		desc = fmt.Sprintf("%s (%.1f/s)", desc, cfg.RatePerSecond)
	}
	return sender, desc, primary
}
