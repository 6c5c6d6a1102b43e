package httpmw

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxKeyIdentity ctxKey = "identity"

	HeaderUserID = "X-User-ID"
)

// TokenParser resolves a signed identity token to an identity id.
type TokenParser interface {
	Parse(token string) (string, error)
}

// Identity resolves the caller from a Bearer token, X-User-ID or the uuid
// query parameter, in that order. An invalid token is ignored. The resolved
// id may be empty; handlers fall back to the body or a fresh id.
func Identity(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") && tokens != nil {
				if sub, err := tokens.Parse(strings.TrimSpace(auth[7:])); err == nil {
					id = sub
				}
			}
			if id == "" {
				id = strings.TrimSpace(r.Header.Get(HeaderUserID))
			}
			if id == "" {
				id = strings.TrimSpace(r.URL.Query().Get("uuid"))
			}
			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIdentity).(string); ok {
		return v
	}
	return ""
}
