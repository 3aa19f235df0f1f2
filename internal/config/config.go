package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/solarbill-ai-platform/internal/race"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool

	// ContextStore selects the conversation context backend: memory, redis or postgres.
	ContextStore string

	// Qualification and follow-up rules
	MinQualifyingAmount      float64
	QualifyingScoreThreshold int
	ReplyTimeout             time.Duration
	ReminderText             string

	// Chat transport (WhatsApp gateway)
	ChatAPIBaseURL         string
	ChatAPIToken           string
	ChatAPIInstance        string
	ChatAPIFallbackBaseURL string
	ChatAPIFallbackToken   string
	OutboundRatePerSecond  float64
	OutboundBurst          int

	// AWS
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	ConversationQueueURL string
	RaceJournalTable     string
	MediaBucket          string
	BedrockModelID       string

	// Gemini
	GeminiAPIKey        string
	GeminiModelID       string
	GeminiVisionModelID string

	// Sales alerts
	EmailProvider     string
	SalesAlertEmail   string
	SalesAlertPhone   string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	// HTTP surface
	WebhookToken        string
	CORSAllowedOrigins  []string
	PublicRatePerSecond float64
	PublicBurst         int

	// Background loops
	SweepInterval      time.Duration
	OutboxPollInterval time.Duration
	ProcessedRetention time.Duration
	TranscriptsEnabled bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", true),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		ContextStore:   strings.ToLower(strings.TrimSpace(getEnv("CONTEXT_STORE", "memory"))),

		MinQualifyingAmount:      getEnvAsFloat("MIN_QUALIFYING_AMOUNT", 200),
		QualifyingScoreThreshold: getEnvAsInt("QUALIFYING_SCORE_THRESHOLD", 65),
		ReplyTimeout:             getEnvAsISODuration("REPLY_TIMEOUT", race.DefaultDeadline),
		ReminderText:             getEnv("REMINDER_TEXT", "Oi! Ainda está por aí? Se puder, me mande a foto da sua conta de luz para eu calcular sua economia com energia solar."),

		ChatAPIBaseURL:         getEnv("CHAT_API_BASE_URL", ""),
		ChatAPIToken:           getEnv("CHAT_API_TOKEN", ""),
		ChatAPIInstance:        getEnv("CHAT_API_INSTANCE", ""),
		ChatAPIFallbackBaseURL: getEnv("CHAT_API_FALLBACK_BASE_URL", ""),
		ChatAPIFallbackToken:   getEnv("CHAT_API_FALLBACK_TOKEN", ""),
		OutboundRatePerSecond:  getEnvAsFloat("OUTBOUND_RATE_PER_SECOND", 5),
		OutboundBurst:          getEnvAsInt("OUTBOUND_BURST", 10),

		AWSRegion:            getEnv("AWS_REGION", "sa-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),
		RaceJournalTable:     getEnv("RACE_JOURNAL_TABLE", ""),
		MediaBucket:          getEnv("MEDIA_BUCKET", ""),
		BedrockModelID:       getEnv("BEDROCK_MODEL_ID", ""),

		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		GeminiVisionModelID: getEnv("GEMINI_VISION_MODEL_ID", "gemini-2.5-flash"),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", ""))),
		SalesAlertEmail:   getEnv("SALES_ALERT_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SalesAlertPhone:   getEnv("SALES_ALERT_PHONE", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Solar Leads"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		WebhookToken:        getEnv("CHAT_WEBHOOK_TOKEN", ""),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
		PublicRatePerSecond: getEnvAsFloat("PUBLIC_RATE_PER_SECOND", 20),
		PublicBurst:         getEnvAsInt("PUBLIC_BURST", 40),

		SweepInterval:      getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		ProcessedRetention: getEnvAsDuration("PROCESSED_RETENTION", 7*24*time.Hour),
		TranscriptsEnabled: getEnvAsBool("TRANSCRIPTS_ENABLED", true),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsISODuration accepts ISO-8601 durations (PT2H) and falls back to Go syntax (2h).
func getEnvAsISODuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	if value, err := race.ParseISODuration(valueStr); err == nil && value > 0 {
		return value
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
