// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. This maps paths like /v1/points/123 to /v1/points/{id}.
func normalizePath(path string) string {
	// Exact matches for static routes (no normalization needed)
	staticRoutes := map[string]bool{
		"/":                        true,
		"/v1/auth/register":        true,
		"/v1/auth/login":           true,
		"/v1/auth/refresh":         true,
		"/v1/points":               true,
		"/v1/recyclers/online":     true,
		"/v1/recyclers/presence":   true,
		"/v1/rewards/balance":      true,
		"/v1/notifications":        true,
		"/v1/notifications/unread": true,
		"/v1/messages":             true,
		"/v1/messages/unread":      true,
		"/v1/ratings":              true,
		"/v1/donations":            true,
		"/v1/photos/sign":          true,
		"/v1/session/tab":          true,
		"/v1/feed":                 true,
		"/internal/stripe":         true,
		"/health":                  true,
		"/ready":                   true,
		"/metrics":                 true,
	}

	if staticRoutes[path] {
		return path
	}

	// Pattern-based normalization for dynamic routes

	// /v1/points/{id} and /v1/points/{id}/claim|cancel|complete|reopen|claims
	if strings.HasPrefix(path, "/v1/points/") {
		parts := strings.Split(path, "/")
		if len(parts) == 5 {
			switch parts[4] {
			case "claim", "cancel", "complete", "reopen", "claims":
				return "/v1/points/{id}/" + parts[4]
			}
		}
		if len(parts) == 4 && parts[3] != "" {
			return "/v1/points/{id}"
		}
	}

	// /v1/recyclers/{id}/ratings
	if strings.HasPrefix(path, "/v1/recyclers/") {
		parts := strings.Split(path, "/")
		if len(parts) == 5 && parts[4] == "ratings" {
			return "/v1/recyclers/{id}/ratings"
		}
	}

	// /v1/notifications/{id}/read
	if strings.HasPrefix(path, "/v1/notifications/") {
		parts := strings.Split(path, "/")
		if len(parts) == 5 && parts[4] == "read" {
			return "/v1/notifications/{id}/read"
		}
	}

	// /v1/messages/{user_id} and /v1/messages/{user_id}/read
	if strings.HasPrefix(path, "/v1/messages/") {
		parts := strings.Split(path, "/")
		if len(parts) == 5 && parts[4] == "read" {
			return "/v1/messages/{user_id}/read"
		}
		if len(parts) == 4 && parts[3] != "" {
			return "/v1/messages/{user_id}"
		}
	}

	// Fallback: return as-is for unknown patterns
	// This ensures we don't accidentally break metrics for new routes
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exclude health check endpoints from metrics
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			// Wrap response writer to capture status and size
			mrw := newMetricsResponseWriter(w)

			// Get request size from Content-Length header
			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			// Call the next handler
			next.ServeHTTP(mrw, r)

			// Calculate duration in seconds
			duration := time.Since(start).Seconds()

			// Normalize path to prevent cardinality explosion
			normalizedPath := normalizePath(r.URL.Path)

			// Record metrics
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
