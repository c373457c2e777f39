package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/loomworks/gateway/internal/health"
	"github.com/loomworks/gateway/internal/httpserver/deps"
	"github.com/loomworks/gateway/internal/httpserver/mw"
	"github.com/loomworks/gateway/internal/httpserver/respond"
)

type healthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
	HealthyServices int       `json:"healthy_services"`
	TotalServices   int       `json:"total_services"`
	HealthyPercent  float64   `json:"healthy_percent"`
	Version         string    `json:"version,omitempty"`
	Commit          string    `json:"commit,omitempty"`
	BuildDate       string    `json:"build_date,omitempty"`
	GoVersion       string    `json:"go_version,omitempty"`
}

type serviceStateResponse struct {
	Name string `json:"name"`
	health.State
}

// Health reports the aggregate gateway status from the monitor's
// snapshot. It never calls a backend.
func Health(d deps.Deps) http.HandlerFunc {
	start := d.StartTime
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		snap := d.Health.Snapshot()
		healthy := 0
		for _, st := range snap {
			if st.Status != health.StatusUnhealthy {
				healthy++
			}
		}

		status := "ok"
		percent := 100.0
		if len(snap) > 0 {
			percent = float64(healthy) / float64(len(snap)) * 100
			if healthy < len(snap) {
				status = "degraded"
			}
		}

		respond.JSON(w, http.StatusOK, healthResponse{
			Status:          status,
			Timestamp:       time.Now().UTC(),
			UptimeSeconds:   time.Since(start).Seconds(),
			HealthyServices: healthy,
			TotalServices:   len(snap),
			HealthyPercent:  percent,
			Version:         d.Version,
			Commit:          d.Commit,
			BuildDate:       d.BuildDate,
			GoVersion:       d.GoVersion,
		})
	}
}

// ServiceHealthList returns the monitor's snapshot for all services.
func ServiceHealthList(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := d.Health.Snapshot()
		out := make([]serviceStateResponse, 0, len(snap))
		for name, st := range snap {
			out = append(out, serviceStateResponse{Name: name, State: st})
		}
		respond.JSON(w, http.StatusOK, out)
	}
}

// ServiceHealth returns the monitor's state for one service.
func ServiceHealth(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		st, ok := d.Health.ServiceState(name)
		if !ok {
			respond.Error(w, http.StatusNotFound, "unknown service: "+name, mw.GetRequestID(r.Context()))
			return
		}
		respond.JSON(w, http.StatusOK, serviceStateResponse{Name: name, State: st})
	}
}
