package middleware

import (
	"net/http"
	"time"

	"github.com/IgorGrieder/minimizurl/internal/infrastructure/logger"
	"github.com/IgorGrieder/minimizurl/pkg/httputils"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Logging writes one access log line per request, with trace context when a
// span is active. Server errors log at error, client errors at warn.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)

		next.ServeHTTP(sw, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", routeLabel(r)),
			zap.Int("status", sw.status),
			zap.Int("bytes", sw.bytes),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", clientIP(r)),
		}
		if id := sw.Header().Get(httputils.CorrelationIDHeader); id != "" {
			fields = append(fields, zap.String("correlation_id", id))
		}

		sc := trace.SpanFromContext(r.Context()).SpanContext()
		if sc.IsValid() {
			fields = append(fields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}

		switch {
		case sw.status >= 500:
			logger.Error("request completed", fields...)
		case sw.status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	})
}
