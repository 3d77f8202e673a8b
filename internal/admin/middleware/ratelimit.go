package middleware

import (
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/ratelimit"
)

// RateLimit returns middleware that enforces per-key rate limits.
// It reads the KeyInfo from context (set by Auth middleware) and uses
// the key's configured rate_limit value. Requests without a key are
// passed through.
func RateLimit(limiter *ratelimit.Limiter, retryAfterSeconds int) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(retryAfterSeconds)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := GetKeyInfo(r.Context())
			if info == nil || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(info.ID, info.RateLimit) {
				w.Header().Set("Retry-After", retryAfter)
				if IsAJAX(r) {
					WriteAJAXFailure(w, http.StatusTooManyRequests, "rate limit exceeded")
					return
				}
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
