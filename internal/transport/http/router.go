package http

import (
	"net/http"

	"github.com/IgorGrieder/minimizurl/internal/config"
	"github.com/IgorGrieder/minimizurl/internal/transport/http/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

var spanNames = map[string]string{
	"GET /health":                     "health",
	"GET /ready":                      "ready",
	"GET /metrics":                    "metrics",
	"POST /api/links":                 "links.create",
	"GET /api/links/{code}":           "links.get",
	"PUT /api/links/{code}":           "links.update",
	"DELETE /api/links/{code}":        "links.delete",
	"GET /api/links/{code}/stats":     "links.stats",
	"GET /api/links/{code}/analytics": "links.analytics",
	"GET /api/me/links/count":         "me.links_count",
	"DELETE /api/me":                  "me.delete",
	"GET /{code}":                     "links.redirect",
}

type RouterDeps struct {
	Links         LinkService
	Authenticator *middleware.Authenticator
	CreateLimiter middleware.Limiter
	Readiness     map[string]Pinger
}

type RouterOptions struct {
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool
	EnableTracing bool
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
		EnableTracing: true,
	}
}

func NewRouter(cfg *config.Config, deps RouterDeps) http.Handler {
	return NewRouterWithOptions(cfg, deps, DefaultRouterOptions())
}

func NewRouterWithOptions(cfg *config.Config, deps RouterDeps, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	healthHandler := NewHealthHandler(deps.Readiness)
	linksHandler := NewLinksHandler(cfg, deps.Links)

	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, nameSpan(h))
	}

	handle("GET /health", http.HandlerFunc(healthHandler.Health))
	handle("GET /ready", http.HandlerFunc(healthHandler.Ready))
	handle("GET /metrics", healthHandler.Metrics())

	// Identity runs inside the mux so the outer middlewares still see the
	// matched pattern on the request they hold.
	auth := deps.Authenticator
	if auth == nil {
		auth = middleware.NewAuthenticator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer)
	}
	identified := func(h http.HandlerFunc, mws ...middleware.Middleware) http.Handler {
		return middleware.Chain(h, append([]middleware.Middleware{middleware.Identity(auth)}, mws...)...)
	}

	var createMiddlewares []middleware.Middleware
	if deps.CreateLimiter != nil {
		createMiddlewares = append(createMiddlewares, middleware.RateLimit(deps.CreateLimiter))
	}

	handle("POST /api/links", identified(linksHandler.Create, createMiddlewares...))
	handle("GET /api/links/{code}", identified(linksHandler.Get))
	handle("PUT /api/links/{code}", identified(linksHandler.Update))
	handle("DELETE /api/links/{code}", identified(linksHandler.Delete))
	handle("GET /api/links/{code}/stats", identified(linksHandler.Stats))
	handle("GET /api/links/{code}/analytics", identified(linksHandler.Analytics))
	handle("GET /api/me/links/count", identified(linksHandler.CountMine))
	handle("DELETE /api/me", identified(linksHandler.DeleteMe))
	handle("GET /{code}", identified(linksHandler.Redirect))

	var innerHandler http.Handler = mux
	if opts.EnableCORS {
		innerHandler = middleware.CORS(cfg.Security.AllowedOrigins)(innerHandler)
	}
	if opts.EnableLogging {
		innerHandler = middleware.Logging(innerHandler)
	}
	if opts.EnableMetrics {
		innerHandler = middleware.Metrics(innerHandler)
	}
	if !opts.EnableTracing {
		return innerHandler
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name,
		otelhttp.WithSpanNameFormatter(spanName),
	)
}

// spanName names the server span before routing; nameSpan renames it once
// the mux has matched a pattern.
func spanName(_ string, r *http.Request) string {
	return "HTTP " + r.Method
}

func nameSpan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())
		if name, ok := spanNames[r.Pattern]; ok {
			span.SetName(name)
		} else if r.Pattern != "" {
			span.SetName(r.Pattern)
		}
		next.ServeHTTP(w, r)
	})
}
