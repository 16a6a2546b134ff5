package api

import (
	"net/http"

	"github.com/nanuguru/Med-Procedure/engine"
	"github.com/nanuguru/Med-Procedure/metrics"
)

// HealthHandler reports liveness and runtime counters.
type HealthHandler struct {
	eng       *engine.Engine
	collector *metrics.Collector
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(eng *engine.Engine, collector *metrics.Collector) *HealthHandler {
	return &HealthHandler{eng: eng, collector: collector}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": h.eng.ActiveRuns(),
	})
}

// Metrics handles GET /metrics
func (h *HealthHandler) Metrics(w http.ResponseWriter, _ *http.Request) {
	if h.collector == nil {
		writeJSON(w, http.StatusOK, metrics.Snapshot{})
		return
	}
	writeJSON(w, http.StatusOK, h.collector.Snapshot())
}
