package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/solarbill-ai-platform/internal/config"
	"github.com/wolfman30/solarbill-ai-platform/internal/llm"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/internal/notify"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// Email providers accepted by EMAIL_PROVIDER.
const (
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
	EmailProviderStub     = "stub"
)

// BuildLLMClient chains Bedrock then Gemini, skipping unconfigured providers.
// It returns nil when neither is configured, which leaves replies on
// templates. The returned closers release provider connections.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (llm.Client, []func() error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return nil, nil
	}

	var clients []llm.NamedClient
	var closers []func() error
	if model := strings.TrimSpace(cfg.BedrockModelID); model != "" {
		clients = append(clients, llm.NamedClient{
			Name:   "bedrock",
			Client: llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), model),
		})
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("gemini client disabled", "error", err)
		} else {
			clients = append(clients, llm.NamedClient{Name: "gemini", Client: gemini})
			closers = append(closers, gemini.Close)
		}
	}

	if len(clients) == 0 {
		logger.Warn("no LLM configured; replies use templates only")
		return nil, closers
	}
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name)
	}
	logger.Info("LLM providers configured", "providers", strings.Join(names, ","))
	return llm.NewChain(logger, clients...), closers
}

// BuildVisionReader returns the Gemini vision reader, or nil when no API key
// is configured. Without it, bill photos are acknowledged but not read.
func BuildVisionReader(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (llm.VisionReader, func() error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		logger.Warn("no vision model configured; bill photos will not be read")
		return nil, nil
	}
	reader, err := llm.NewGeminiVisionReader(ctx, cfg.GeminiAPIKey, cfg.GeminiVisionModelID)
	if err != nil {
		logger.Warn("vision reader disabled", "error", err)
		return nil, nil
	}
	return reader, reader.Close
}

// BuildEmailSender selects the sales alert email transport. An explicit
// provider wins; otherwise SendGrid is used when a key exists, then SES when a
// sender address exists, then the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), EmailProviderStub
	}

	provider := cfg.EmailProvider
	if provider == "" {
		switch {
		case cfg.SendGridAPIKey != "":
			provider = EmailProviderSendGrid
		case cfg.SESFromEmail != "":
			provider = EmailProviderSES
		default:
			provider = EmailProviderStub
		}
	}

	switch provider {
	case EmailProviderSendGrid:
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, EmailProviderSendGrid
		}
		logger.Warn("sendgrid selected but not configured; using stub email sender")
	case EmailProviderSES:
		if cfg.SESFromEmail != "" {
			return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger), EmailProviderSES
		}
		logger.Warn("ses selected but SES_FROM_EMAIL is empty; using stub email sender")
	case EmailProviderStub:
	default:
		logger.Warn("unknown email provider; using stub email sender", "provider", provider)
	}
	return notify.NewStubEmailSender(logger), EmailProviderStub
}

// BuildSender wires the outbound chat sender chain from config.
func BuildSender(cfg *appconfig.Config, logger *logging.Logger) (messaging.Sender, string, *messaging.ChatAPIClient) {
	if cfg == nil {
		return messaging.NewMemorySender(), messaging.ProviderMemory, nil
	}
	return messaging.BuildSender(messaging.ProviderSelectionConfig{
		PrimaryBaseURL:  cfg.ChatAPIBaseURL,
		PrimaryToken:    cfg.ChatAPIToken,
		Instance:        cfg.ChatAPIInstance,
		FallbackBaseURL: cfg.ChatAPIFallbackBaseURL,
		FallbackToken:   cfg.ChatAPIFallbackToken,
		RatePerSecond:   cfg.OutboundRatePerSecond,
		Burst:           cfg.OutboundBurst,
	}, logger)
}
