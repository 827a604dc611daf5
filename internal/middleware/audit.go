package middleware

import (
	"net/http"

	logpkg "github.com/benvon/report-templates/internal/logger"
	"github.com/benvon/report-templates/internal/request"
	"go.uber.org/zap"
)

// auditEvents maps the statuses worth a security log line to their event names.
var auditEvents = map[int]string{
	http.StatusRequestEntityTooLarge: "oversized_request",
	http.StatusUnsupportedMediaType:  "unsupported_upload",
	http.StatusTooManyRequests:       "rate_limit_violation",
}

// Audit logs abuse-related responses: oversized bodies, rejected uploads and
// rate limit violations.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			event, ok := auditEvents[wrapped.statusCode]
			if !ok {
				return
			}
			logger.Warn(event,
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.Int64("request_bytes", r.ContentLength),
				zap.String("request_id", request.IDFromContext(r.Context())),
			)
		})
	}
}
