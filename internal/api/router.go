package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	// RequestTimeout bounds each request, including live fetches.
	RequestTimeout time.Duration
	AllowedOrigins []string
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		RequestTimeout: 120 * time.Second,
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
	}
}

func NewRouter(h *Handlers, opts RouterOptions) chi.Router {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRouterOptions().RequestTimeout
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/reviews", h.ListStoredReviews)
		r.Get("/targets/{target}/reviews", h.FetchTargetReviews)
		r.Delete("/targets/{target}/reviews", h.EvictTarget)
	})

	return r
}
