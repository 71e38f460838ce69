// Package handler provides the HTTP API for Meridian.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/metrics"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/service"
)

// healthTimeout bounds the database probe behind /health.
const healthTimeout = 2 * time.Second

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Users    *service.UserService
	Products *service.ProductService

	// Reports is nil when reporting is disabled.
	Reports *service.ReportService

	// Database is nil for the in-memory driver.
	Database repository.DatabaseHealth

	// Metrics records request latency. MetricsPath is left unmounted when empty.
	Metrics     *metrics.Metrics
	MetricsPath string

	// CORSOrigins lists allowed origins. Empty allows any.
	CORSOrigins []string

	// MaxBodySize caps request bodies in bytes. Zero disables the cap.
	MaxBodySize int64

	Logger zerolog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger.With().Str("component", "router").Logger()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, recoverer(logger), requestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id", "X-Report-Key"},
		MaxAge:         300,
	}))
	r.Use(httpMetrics(cfg.Metrics), limitBody(cfg.MaxBodySize))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, CodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Get("/health", healthHandler(cfg.Database))
	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, cfg.Metrics.Handler())
	}

	users := NewUserHandler(cfg.Users, logger)
	products := NewProductHandler(cfg.Products, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", users.Routes)
		r.Route("/products", products.Routes)
		r.Get("/categories", products.Categories)
		r.Get("/categories/{id}/products", products.ByCategory)
		if cfg.Reports != nil {
			r.Route("/reports", NewReportHandler(cfg.Reports, logger).Routes)
		}
	})

	return r
}

// healthHandler reports healthy unless the database probe fails.
func healthHandler(db repository.DatabaseHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := db.Health(ctx); err != nil {
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
