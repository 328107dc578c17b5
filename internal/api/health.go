package api

import (
	"net/http"
	"time"

	"github.com/kafadas/kinjo/internal/api/respond"
)

// HealthReporter is the service-level health view; health.ServiceHealthChecker
// satisfies it.
type HealthReporter interface {
	IsHealthy() bool
	Components() map[string]bool
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	h HealthReporter
}

func NewHealthHandler(h HealthReporter) *HealthHandler { return &HealthHandler{h: h} }

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	components := map[string]bool{}
	if h.h != nil {
		if h.h.IsHealthy() {
			status = "healthy"
		}
		components = h.h.Components()
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
