package handlers

import (
	"net/http"
	"time"

	"finitefield.org/airtools-web/internal/httpx"
)

// HealthHandlers answers liveness probes.
type HealthHandlers struct {
	started time.Time
	now     func() time.Time
}

// NewHealthHandlers records the process start time.
func NewHealthHandlers() *HealthHandlers {
	return &HealthHandlers{started: time.Now(), now: time.Now}
}

// Healthz responds with a simple status payload.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.started).Round(time.Second).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}
