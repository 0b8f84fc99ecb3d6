package handler

import (
	"net/http"
)

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]interface{}{"status": "ok"})
}
