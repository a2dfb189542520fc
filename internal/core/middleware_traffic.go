package core

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"promptforge/internal/ratelimit"
	"promptforge/internal/types"
)

// RateLimit throttles all inbound traffic per client IP using the server's
// api limiter. It runs before authentication: raw request volume is limited
// independent of identity and plan.
//
// On every request (allowed or not) the middleware sets standard rate limit
// response headers:
//   - X-RateLimit-Limit: the maximum number of requests in the window.
//   - X-RateLimit-Remaining: the number of requests remaining.
//   - X-RateLimit-Reset: Unix timestamp when the window resets.
//
// When rate limited, the middleware also sets Retry-After (seconds until the
// window resets), counts the rejection against the limiter's name in the
// rate_limited metric, and rejects with 429 rate_limit_exceeded.
//
// If no limiter is configured (e.g., during handler unit tests), the
// middleware passes through without rate limiting.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	limit := 0
	if s.Config != nil {
		limit = s.Config.RateLimit.APIMaxRequests
	}
	return rateLimitHandler(s.APILimiter, limit, s.Logger, s.Metrics, next)
}

// NamedRateLimit returns route-scoped throttling middleware over an
// additional limiter instance. Used to apply a stricter budget to
// AI-cost-bearing endpoints on top of the global api limiter. metrics may be
// nil, in which case rejections are not counted.
func NamedRateLimit(limiter ratelimit.Limiter, maxRequests int, logger *slog.Logger, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return rateLimitHandler(limiter, maxRequests, logger, metrics, next)
	}
}

// rateLimitHandler is the shared implementation behind both middlewares.
func rateLimitHandler(limiter ratelimit.Limiter, maxRequests int, logger *slog.Logger, metrics *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r)
		result := limiter.Check(key)

		// Bookkeeping headers on every response, allowed or denied, for
		// client-side awareness.
		setRateLimitHeaders(w, maxRequests, result)

		if !result.Allowed {
			if metrics != nil {
				metrics.RecordRateLimited(limiter.Name())
			}
			if logger != nil {
				logger.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
			}

			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			requestID := types.GetRequestID(r.Context())
			resp := APIErrorResponse{
				Error: ErrorDetail{
					Code:    string(types.ErrCodeRateLimit),
					Message: "Rate limit exceeded. Please retry after the reset time.",
					Details: map[string]any{
						"retry_after_seconds": retryAfter,
					},
					RequestID: requestID,
				},
			}
			JSON(w, r, http.StatusTooManyRequests, resp)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setRateLimitHeaders writes the standard X-RateLimit-* headers to the response.
func setRateLimitHeaders(w http.ResponseWriter, limit int, result ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// clientIP extracts the caller identity used as the throttling key. Behind a
// trusted proxy the first X-Forwarded-For hop is the original client;
// otherwise the socket peer address is used, with the port stripped.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
