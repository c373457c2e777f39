package proxy

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestGatewayErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *GatewayError
		want int
	}{
		{"auth required", AuthRequired("authentication required", nil), http.StatusUnauthorized},
		{"forbidden", Forbidden("admin access required"), http.StatusForbidden},
		{"rate limited", RateLimited(time.Minute), http.StatusTooManyRequests},
		{"route not found", RouteNotFound("/api/nope"), http.StatusNotFound},
		{"unavailable", Unavailable("catalog", "backend call failed", nil), http.StatusServiceUnavailable},
		{"internal", Internal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Status(); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	gerr := Unavailable("catalog", "backend call failed", cause)
	if !errors.Is(gerr, cause) {
		t.Error("Unwrap should expose the underlying cause")
	}
	if gerr.Service != "catalog" {
		t.Errorf("Service = %q, want catalog", gerr.Service)
	}
}
