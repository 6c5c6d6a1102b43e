package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRequestID(t *testing.T) {
	var seen string
	h := MiddlewareRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	for _, bad := range []string{"", "has space", strings.Repeat("x", 200)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, bad)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Len(t, seen, 36, "id %q should be replaced", bad)
		assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
	}
}

func TestMiddlewareLogging_Status(t *testing.T) {
	h := MiddlewareRequestID(MiddlewareLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusTeapot, "short and stout")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pot", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.JSONEq(t, `{"error":"short and stout"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Room string `json:"room"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"room":"dev"}`))
	require.NoError(t, DecodeJSON(r, &dst))
	assert.Equal(t, "dev", dst.Room)

	empty := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, DecodeJSON(empty, &dst))

	bad := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"room":`))
	assert.Error(t, DecodeJSON(bad, &dst))
}
