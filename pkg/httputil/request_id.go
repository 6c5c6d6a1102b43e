package httputil

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type reqIDKey struct{}

const (
	HeaderRequestID = "X-Request-ID"
	maxRequestIDLen = 128
)

// MiddlewareRequestID echoes a sane client X-Request-ID or mints a uuid, and
// stores it in the request context.
func MiddlewareRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), reqIDKey{}, id)))
	})
}

// validRequestID rejects empty, oversized and non-printable ids so they can
// be logged verbatim.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(reqIDKey{}).(string)
	return v, ok
}
