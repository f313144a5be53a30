package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Health reports service and database status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "model": h.model, "database": "ok"}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			slog.Error("Health check: database ping failed", "error", err)
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			JSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	JSON(w, http.StatusOK, resp)
}
