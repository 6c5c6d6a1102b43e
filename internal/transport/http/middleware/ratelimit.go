package httpmw

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/surewhynot/realtime/internal/ratelimit"
	"github.com/surewhynot/realtime/pkg/httputil"
)

type Limiter interface {
	Allow(ctx context.Context, bucket, client string, rule ratelimit.Rule) ratelimit.Result
}

// RateLimit spends one request of bucket per client ip. Paths in exempt
// pass through.
func RateLimit(l Limiter, bucket string, rule ratelimit.Rule, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			res := l.Allow(r.Context(), bucket, ClientIP(r), rule)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				httputil.Error(w, http.StatusTooManyRequests, "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP prefers CF-Connecting-IP, then the first X-Forwarded-For hop,
// then the remote address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
