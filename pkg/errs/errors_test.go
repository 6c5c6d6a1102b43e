package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToHTTP(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"wrapped invalid input", fmt.Errorf("chat send: %w", ErrInvalidInput), http.StatusBadRequest},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToHTTP(tt.err); got != tt.want {
				t.Errorf("ToHTTP(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
