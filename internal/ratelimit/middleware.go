// SPDX-License-Identifier: MIT

package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	xglog "github.com/ManuGH/saytube/internal/log"
	"github.com/ManuGH/saytube/internal/metrics"
)

const rejectBody = `{"error":"Rate limit exceeded"}`

// Middleware admits requests through l, keyed by trusted.ClientKey.
// Forwarding headers only count when the peer is a trusted proxy. Rejected
// requests get a 429 with a Retry-After header and are never passed on.
func Middleware(l *Limiter, trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := trusted.ClientKey(r)
			if clientID == "" {
				clientID = r.RemoteAddr
			}
			ctx := xglog.ContextWithClientID(r.Context(), clientID)

			d := l.Admit(ctx, clientID)
			if d.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Allowed {
				metrics.IncRateLimitRejection(r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(d)))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(rejectBody))
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func retrySeconds(d Decision) int {
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
