package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/signet/internal/http/httpx"
	"github.com/dropDatabas3/signet/internal/observability/logger"
)

// Healthz is the liveness probe.
func (d *Deps) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings every configured backend and fails when any is unreachable.
func (d *Deps) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range d.Ready {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			logger.From(r.Context()).Warn("readiness check failed", logger.Err(err))
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
