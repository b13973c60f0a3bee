// Package api exposes reconciliation and pricing as a JSON HTTP service.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sydlexius/spinmatch/internal/api/middleware"
	"github.com/sydlexius/spinmatch/internal/logging"
	"github.com/sydlexius/spinmatch/internal/pricing"
	"github.com/sydlexius/spinmatch/internal/provider"
	"github.com/sydlexius/spinmatch/internal/release"
)

// maxRequestBytes bounds request bodies; label images arrive base64-encoded.
const maxRequestBytes = 16 << 20

// Reconciler resolves a partial query, or a caller-chosen external ID, into
// a catalog candidate.
type Reconciler interface {
	Reconcile(ctx context.Context, q release.IdentifierQuery) (*release.Result, error)
	Select(ctx context.Context, externalID string) (*release.Result, error)
}

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Reconciler       Reconciler
	Pricer           pricing.Pricer
	ProviderRegistry *provider.Registry
	LogManager       *logging.Manager
	Logger           *slog.Logger
	BasePath         string
	// ClientLimiter paces lookup endpoints per client IP. Nil disables it.
	ClientLimiter *middleware.ClientRateLimiter
	// ProviderTestTimeout bounds GET /providers/test.
	ProviderTestTimeout time.Duration
}

// Router sets up all HTTP routes for the application.
type Router struct {
	reconciler       Reconciler
	pricer           pricing.Pricer
	providerRegistry *provider.Registry
	logManager       *logging.Manager
	logger           *slog.Logger
	basePath         string
	clientLimiter    *middleware.ClientRateLimiter
	testTimeout      time.Duration
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	timeout := deps.ProviderTestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	registry := deps.ProviderRegistry
	if registry == nil {
		registry = provider.NewRegistry()
	}
	return &Router{
		reconciler:       deps.Reconciler,
		pricer:           deps.Pricer,
		providerRegistry: registry,
		logManager:       deps.LogManager,
		logger:           deps.Logger.With(slog.String("component", "api")),
		basePath:         deps.BasePath,
		clientLimiter:    deps.ClientLimiter,
		testTimeout:      timeout,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	bp := r.basePath

	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)

	// Lookup routes reach rate-limited upstreams.
	mux.Handle("POST "+bp+"/api/v1/reconcile", r.limited(r.handleReconcile))
	mux.Handle("POST "+bp+"/api/v1/price", r.limited(r.handlePrice))

	// Provider routes
	mux.HandleFunc("GET "+bp+"/api/v1/providers", r.handleListProviders)
	mux.Handle("GET "+bp+"/api/v1/providers/test", r.limited(r.handleTestProviders))

	// Runtime logging
	mux.HandleFunc("GET "+bp+"/api/v1/logging", r.handleGetLogging)
	mux.HandleFunc("PUT "+bp+"/api/v1/logging", r.handleUpdateLogging)

	var h http.Handler = mux
	h = middleware.MaxBody(maxRequestBytes)(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.Logging(r.logger)(h)
	return middleware.RequestID(h)
}

func (r *Router) limited(fn http.HandlerFunc) http.Handler {
	if r.clientLimiter == nil {
		return fn
	}
	return r.clientLimiter.Middleware(fn)
}
