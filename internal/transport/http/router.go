package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"biolink/internal/handler"
	"biolink/internal/metrics"
	authmw "biolink/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	ProfileHandler *handler.ProfileHandler
	ViewHandler    *handler.ViewHandler
	MediaHandler   *handler.MediaHandler
	HealthHandler  *handler.HealthHandler
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
	JWTSecret      string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmw.AccessLog(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", cfg.HealthHandler.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	optional := authmw.OptionalAuthMiddleware(cfg.JWTSecret)
	required := authmw.AuthMiddleware(cfg.JWTSecret)

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		// Public profile reads; a token only decides isOwnerView
		r.With(optional).Get("/profiles/by-slug/{slug}", cfg.ProfileHandler.GetBySlug)
		r.With(optional).Get("/profiles/{ownerId}", cfg.ProfileHandler.Get)

		// Anonymous view counting
		r.Post("/profiles/{ownerId}/views", cfg.ViewHandler.RecordView)
		r.Get("/site/stats", cfg.ViewHandler.SiteStats)

		r.Get("/identities/{id}", cfg.ProfileHandler.LookupIdentity)

		// Owner-only writes
		r.Group(func(r chi.Router) {
			r.Use(required)

			r.Post("/profiles", cfg.ProfileHandler.Create)
			r.Patch("/profiles/{ownerId}", cfg.ProfileHandler.Update)
			r.Post("/profiles/{ownerId}/sync", cfg.ProfileHandler.Sync)
		})
	})

	// Uploads are exempt from the request timeout.
	r.Group(func(r chi.Router) {
		r.Use(required)

		r.Post("/profiles/{ownerId}/avatar", cfg.MediaHandler.UploadAvatar)
		r.Post("/profiles/{ownerId}/background", cfg.MediaHandler.UploadBackground)
	})

	return r
}
