package router

import (
	"context"
	"net/http"
	"time"

	"discount-rules/internal/handler"
	"discount-rules/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	APIKey string
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Database is pinged by /health. Nil reports healthy without a check.
	Database Pinger
}

// New creates a new HTTP router with all routes and middleware configured.
func New(
	ruleHandler *handler.RuleHandler,
	redemptionHandler *handler.RedemptionHandler,
	opts Options,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> Correlation -> Logging -> CORS
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.RequestID)
	r.Use(middleware.Correlation)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)

	// Health check and metrics (no authentication required)
	r.Get("/health", healthHandler(opts.Database))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(opts.APIKey, logger))

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", ruleHandler.Create)
			r.Get("/", ruleHandler.List)
			r.Post("/bulk-delete", ruleHandler.BulkDelete)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ruleHandler.Get)
				r.Put("/", ruleHandler.Update)
				r.Delete("/", ruleHandler.Delete)
				r.Post("/deactivate", ruleHandler.Deactivate)
				r.Post("/copy", ruleHandler.Copy)
			})
		})

		r.Route("/redemptions", func(r chi.Router) {
			r.Post("/", redemptionHandler.Redeem)
			r.Post("/preview", redemptionHandler.Preview)
		})

		r.Route("/usage", func(r chi.Router) {
			r.Post("/reset", redemptionHandler.Reset)
			r.Get("/{customerID}/{ruleID}", redemptionHandler.Usage)
		})
	})

	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status": "unhealthy"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	}
}
