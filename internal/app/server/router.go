package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"employeehub/internal/platform/metrics"
	appraisalhandler "employeehub/internal/transport/http/handlers/appraisal"
	audithandler "employeehub/internal/transport/http/handlers/audit"
	authhandler "employeehub/internal/transport/http/handlers/auth"
	employeeshandler "employeehub/internal/transport/http/handlers/employees"
	notificationshandler "employeehub/internal/transport/http/handlers/notifications"
	reportshandler "employeehub/internal/transport/http/handlers/reports"
	supervisionhandler "employeehub/internal/transport/http/handlers/supervision"
	traininghandler "employeehub/internal/transport/http/handlers/training"
	"employeehub/internal/transport/http/middleware"
)

// Handlers is everything mounted under /api/v1.
type Handlers struct {
	Auth          *authhandler.Handler
	Employees     *employeeshandler.Handler
	Training      *traininghandler.Handler
	Supervision   *supervisionhandler.Handler
	Appraisals    *appraisalhandler.Handler
	Notifications *notificationshandler.Handler
	Audit         *audithandler.Handler
	Reports       *reportshandler.Handler
}

type RouterConfig struct {
	JWTSecret      string
	Production     bool
	MaxBodyBytes   int64
	AllowedOrigins []string
	LoginRateLimit int
	// Ready reports whether backing services answer. Nil means always ready.
	Ready   func(ctx context.Context) error
	Metrics *metrics.Metrics
}

func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(cfg.Metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Production))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Ready(ctx); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit("login", cfg.LoginRateLimit, time.Minute,
			middleware.WithKeyFunc(middleware.JSONFieldKey("email")), middleware.WithLimitMetrics(cfg.Metrics))).
			Post("/auth/login", h.Auth.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			h.Auth.RegisterRoutes(r)
			h.Employees.RegisterRoutes(r)
			h.Training.RegisterRoutes(r)
			h.Supervision.RegisterRoutes(r)
			h.Appraisals.RegisterRoutes(r)
			h.Notifications.RegisterRoutes(r)
			h.Audit.RegisterRoutes(r)
			h.Reports.RegisterRoutes(r)
		})
	})

	return router
}
