package handlers

import (
	"net/http"

	"github.com/loomworks/gateway/internal/httpserver/deps"
	"github.com/loomworks/gateway/internal/httpserver/respond"
	"github.com/loomworks/gateway/internal/logger"
)

type reloadResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Reload triggers an immediate registry reload. The send is
// non-blocking: if a reload is already queued the request is told to
// wait.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.ReloadTrigger <- struct{}{}:
			d.Logger.Info("manual registry reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			respond.JSON(w, http.StatusAccepted, reloadResponse{
				Triggered: true,
				Message:   "registry reload triggered",
			})
		default:
			d.Logger.Warn("registry reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			respond.JSON(w, http.StatusTooManyRequests, reloadResponse{
				Triggered: false,
				Message:   "reload already in progress, please wait",
			})
		}
	}
}
