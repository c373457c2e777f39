package mw

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/loomworks/gateway/internal/proxy"
)

type ctxKeyRequestID struct{}

// RequestID assigns every request an id, reusing the inbound
// X-Request-Id when a trusted upstream already set one. The id is
// echoed on the response and forwarded to backends.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(proxy.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(proxy.HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id assigned by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID{}).(string); ok {
		return id
	}
	return ""
}
