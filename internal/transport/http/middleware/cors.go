package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the given origins. A single "*" (or an empty list) admits any
// origin; credentials are only allowed for an explicit list.
func CORS(allowedOrigins []string) Middleware {
	anyOrigin := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")

	opts := cors.Options{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodHead,
		},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"Accept",
			"Origin",
			"X-Requested-With",
			"X-Correlation-Id",
			"traceparent",
			"tracestate",
			"baggage",
		},
		ExposedHeaders: []string{"X-Correlation-Id", "Retry-After"},
	}
	if anyOrigin {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowedOrigins = allowedOrigins
		opts.AllowCredentials = true
	}

	c := cors.New(opts)
	return c.Handler
}
