package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports ok, or 503 when the metadata store is unreachable.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	if a.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			a.logger().Warn().Err(err).Msg("health: database ping failed")
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
