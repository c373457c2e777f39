package mw

import (
	"net/http"

	"github.com/loomworks/gateway/internal/httpserver/respond"
	"github.com/loomworks/gateway/internal/logger"
)

// Recover keeps a handler panic from crashing the process, logging it
// and answering with the standard 500 envelope.
func Recover(loggerClient logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					loggerClient.Errorf("panic recovered: %v (request_id=%s path=%s)",
						rec, GetRequestID(r.Context()), r.URL.Path)
					respond.Error(w, http.StatusInternalServerError,
						"internal gateway error", GetRequestID(r.Context()))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
