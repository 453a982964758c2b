// Package httpserver exposes the REST surface: the API-key-authenticated
// programmatic endpoints under /v1, the session-authenticated dashboard
// endpoints under /api, and the payment webhook.
package httpserver

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/onelab-hq/onelab-server/internal/apikeys"
	"github.com/onelab-hq/onelab-server/internal/auth"
	"github.com/onelab-hq/onelab-server/internal/config"
	"github.com/onelab-hq/onelab-server/internal/credits"
	"github.com/onelab-hq/onelab-server/internal/generations"
	"github.com/onelab-hq/onelab-server/internal/generator"
	"github.com/onelab-hq/onelab-server/internal/metrics"
	"github.com/onelab-hq/onelab-server/internal/ratelimit"
	"github.com/onelab-hq/onelab-server/internal/store"
	"github.com/onelab-hq/onelab-server/internal/version"
)

// Server wires the services behind the HTTP surface.
type Server struct {
	store       store.Store
	credits     *credits.Service
	generations *generations.Service
	apiKeys     *apikeys.Service
	invoker     generator.Invoker
	sessions    *auth.Manager
	webhooks    *auth.WebhookVerifier
	limiter     *ratelimit.Limiter
	catalog     config.Catalog
	collector   *metrics.Collector

	logger   *log.Logger
	logLevel string
}

// Options carries the dependencies for a Server.
type Options struct {
	Store       store.Store
	Credits     *credits.Service
	Generations *generations.Service
	APIKeys     *apikeys.Service
	Invoker     generator.Invoker
	Sessions    *auth.Manager
	Webhooks    *auth.WebhookVerifier
	Limiter     *ratelimit.Limiter
	Catalog     config.Catalog
	Metrics     *metrics.Collector
	Logger      *log.Logger
	LogLevel    string
}

// New creates a Server from its dependencies.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		store:       opts.Store,
		credits:     opts.Credits,
		generations: opts.Generations,
		apiKeys:     opts.APIKeys,
		invoker:     opts.Invoker,
		sessions:    opts.Sessions,
		webhooks:    opts.Webhooks,
		limiter:     opts.Limiter,
		catalog:     opts.Catalog,
		collector:   opts.Metrics,
		logger:      logger,
		logLevel:    opts.LogLevel,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/webhooks/payment", s.handlePaymentWebhook)

	// Programmatic API, authenticated by API key.
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.apiKeyAuth)
		v1.Use(s.rateLimit)
		v1.Get("/user/credits", s.handleCredits)
		v1.Get("/generations", s.handleGenerationsList)
		v1.Post("/{tool}", s.handleToolInvoke)
	})

	// Dashboard API, authenticated by session token.
	r.Route("/api", func(api chi.Router) {
		api.Use(s.sessionAuth)
		api.Post("/generate/{tool}", s.handleToolInvoke)
		api.Route("/v1", func(v1 chi.Router) {
			v1.Get("/credits", s.handleCredits)
			v1.Get("/credits/history", s.handleCreditHistory)
			v1.Get("/generations", s.handleGenerationsList)
			v1.Get("/api-keys", s.handleAPIKeysList)
			v1.Post("/api-keys", s.handleAPIKeysCreate)
			v1.Delete("/api-keys/{id}", s.handleAPIKeysRevoke)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Printf("[http] health store ping: %v", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"status":    status,
		"version":   version.Info(),
		"generator": s.invoker.Name(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_, _ = w.Write([]byte(metrics.FormatPrometheus(s.collector.GetSnapshot())))
}

func (s *Server) isDebug() bool { return s.logLevel == "debug" }

func (s *Server) debugf(format string, args ...any) {
	if s.isDebug() {
		s.logger.Printf("[debug] "+format, args...)
	}
}
