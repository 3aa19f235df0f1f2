package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/solarbill-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/solarbill-ai-platform/internal/http/middleware"
	"github.com/wolfman30/solarbill-ai-platform/internal/leads"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// Config holds router configuration. Nil handlers leave their routes
// unregistered.
type Config struct {
	Logger         *logging.Logger
	Health         http.Handler
	MetricsHandler http.Handler
	ChatWebhook    *handlers.ChatWebhookHandler
	Extract        *handlers.ExtractHandler
	AdminLeads     *handlers.AdminLeadsHandler
	LeadsHandler   *leads.Handler

	WebhookToken       string
	CORSAllowedOrigins []string
	// PublicRateLimiter throttles the unauthenticated endpoints per IP.
	PublicRateLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler()
	}
	r.Method(http.MethodGet, "/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(public chi.Router) {
		if cfg.PublicRateLimiter != nil {
			public.Use(httpmiddleware.RateLimit(cfg.PublicRateLimiter))
		}
		if cfg.ChatWebhook != nil {
			public.With(httpmiddleware.RequireToken(httpmiddleware.WebhookTokenHeader, cfg.WebhookToken)).
				Post("/webhooks/chat", cfg.ChatWebhook.Handle)
		}
		if cfg.Extract != nil {
			public.With(middleware.Compress(5)).Post("/extract", cfg.Extract.Extract)
		}
	})

	r.Route("/admin", func(admin chi.Router) {
		if cfg.LeadsHandler != nil {
			admin.Get("/leads", cfg.LeadsHandler.ListLeads)
			admin.Get("/leads/{phone}", cfg.LeadsHandler.GetLead)
		}
		if cfg.AdminLeads != nil {
			admin.Get("/leads/{phone}/context", cfg.AdminLeads.GetContext)
			admin.Get("/races/{raceID}", cfg.AdminLeads.GetRace)
		}
	})

	return r
}
