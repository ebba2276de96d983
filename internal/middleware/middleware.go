// Package middleware holds the HTTP middleware chain pieces specific
// to this service: request logging with per-request IDs and the
// Redis-backed rate limiter.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"argus/internal/cache"
	"argus/internal/handlers"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestID attaches a fresh UUID to each request's context and echoes
// it in the X-Request-ID response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// GetRequestID returns the request's ID, or "" outside the middleware.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logger emits one structured line per request.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			log.Info("request",
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"ip", handlers.ClientIP(r),
				"duration", time.Since(start))
		})
	}
}

// RateLimit rejects clients over their per-minute budget. A nil cache
// disables limiting; limiter errors fail open.
func RateLimit(ca *cache.Cache, perMinute int, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := handlers.ClientIP(r)
			limited, err := ca.IsRateLimited(r.Context(), ip, perMinute)
			if err != nil {
				log.Warn("rate limit check failed", "ip", ip, "error", err)
			}
			if limited {
				log.Info("rate limited", "ip", ip)
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
