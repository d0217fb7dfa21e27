// Package http exposes the ledger services as a JSON API. Every /api route
// acts for the owner named in the X-Owner-ID header.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"budgetbook/internal/log"
	"budgetbook/internal/middleware/ratelimit"
	"budgetbook/internal/middleware/security"
	"budgetbook/internal/middleware/trace"
)

type RouterOptions struct {
	// RequestTimeout is the per-request budget handed to services.
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	AllowedOrigins     []string
	Logger             *log.Logger
}

// Server wraps http.Server with the limiter it owns.
type Server struct {
	http.Server
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
}

// NewServer builds the router and an http.Server listening on addr.
func NewServer(addr string, h *Handler, opts RouterOptions) (*Server, error) {
	router, limiter, tracer, err := newRouter(h, opts)
	if err != nil {
		return nil, err
	}
	return &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      opts.RequestTimeout + 5*time.Second,
			IdleTimeout:       60 * time.Second,
		},
		limiter: limiter,
		tracer:  tracer,
	}, nil
}

// Shutdown drains connections and stops the limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// Metrics exposes request counters for logging at shutdown.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics) {
	return s.tracer.GetMetrics(), s.limiter.GetMetrics()
}

// NewRouter returns the API routes without an http.Server.
func NewRouter(h *Handler, opts RouterOptions) (http.Handler, func(), error) {
	router, limiter, _, err := newRouter(h, opts)
	if err != nil {
		return nil, nil, err
	}
	return router, limiter.Stop, nil
}

func newRouter(h *Handler, opts RouterOptions) (*chi.Mux, *ratelimit.Limiter, *trace.Middleware, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default(log.ComponentHTTP)
	}
	clientIP, err := security.NewClientIP()
	if err != nil {
		return nil, nil, nil, err
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	tracer := trace.NewMiddleware(clientIP.Extract, opts.Logger)

	// Owners share a bucket across addresses; anonymous calls are keyed by IP.
	limitKey := func(r *http.Request) string {
		if owner := r.Header.Get(HeaderOwnerID); owner != "" {
			return "owner:" + owner
		}
		return "ip:" + clientIP.Extract(r)
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{
			Kind:    "rate_limited",
			Message: "rate limit exceeded, retry later",
		}})
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracer.Middleware)
	r.Use(log.Middleware(opts.Logger))
	r.Use(log.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(security.Headers(security.APIHeadersConfig()))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", HeaderOwnerID, trace.HeaderRequestID},
			ExposedHeaders: []string{trace.HeaderRequestID},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware(limitKey, onLimit))
		r.Use(requireOwner)
		r.Use(requestBudget(opts.RequestTimeout))

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Get("/{id}", h.GetEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		r.Route("/specs", func(r chi.Router) {
			r.Get("/", h.ListSpecs)
			r.Post("/", h.CreateSpec)
			r.Get("/{id}", h.GetSpec)
			r.Put("/{id}", h.UpdateSpec)
			r.Delete("/{id}", h.DeleteSpec)
			r.Post("/{id}/pause", h.specTransition(h.Specs.Pause))
			r.Post("/{id}/resume", h.specTransition(h.Specs.Resume))
			r.Post("/{id}/finalize", h.specTransition(h.Specs.Finalize))
			r.Get("/{id}/projection", h.ProjectSpec)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Put("/{id}/parent", h.ReparentCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Put("/{id}/active", h.SetAccountActive)
			r.Post("/{id}/recompute", h.RecomputeAccount)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", h.ListTags)
			r.Post("/", h.CreateTag)
		})

		r.Get("/reports", h.Report)
	})

	return r, limiter, tracer, nil
}

// requestBudget bounds the context handed to services. Reports that run out
// of budget come back truncated instead of failing.
func requestBudget(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
