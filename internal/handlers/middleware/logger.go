package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const RequestIDHeader = "X-Request-Id"

type accessLogger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerMiddleware writes one access log record per request
// Request id is taken from chi RequestID middleware when it runs before, and echoed in response header
func LoggerMiddleware(l accessLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chimiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set(RequestIDHeader, requestID)
			}

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			args := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			}

			if status >= http.StatusInternalServerError {
				l.Error("HTTP request failed", args...)
				return
			}
			l.Info("HTTP request", args...)
		})
	}
}
