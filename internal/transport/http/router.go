package http

import (
	"net/http"

	"github.com/go-budget-api/internal/config"
	"github.com/go-budget-api/internal/infrastructure/metrics"
	"github.com/go-budget-api/internal/transport/http/handler"
	appmiddleware "github.com/go-budget-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. The returned limiter
// must be closed on shutdown.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, *appmiddleware.RateLimiter) {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Code requests and attempts are throttled per client IP.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.TrustProxyHeaders)

	apiH := handler.NewAPIHandler(deps.OTP, deps.Sessions, deps.Budget)
	healthH := handler.NewHealthHandler()

	r.With(sensitiveRL.LimitActions(handler.ActionSendOTP, handler.ActionVerifyOTP)).Get("/", apiH.Get)
	r.Post("/", apiH.Post)
	r.Get("/healthz", healthH.Healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r, sensitiveRL
}
