package api

import (
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nanuguru/Med-Procedure/engine"
	"github.com/nanuguru/Med-Procedure/logging"
	"github.com/nanuguru/Med-Procedure/metrics"
)

// NewRouter creates the Chi router with all routes and middleware. Routes are
// served at the root and again under prefix when one is given.
func NewRouter(eng *engine.Engine, collector *metrics.Collector, prefix string, logger logging.Logger) *chi.Mux {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	r := chi.NewRouter()

	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	procH := NewProcedureHandler(eng, logger)
	sessH := NewSessionHandler(eng)
	healthH := NewHealthHandler(eng, collector)

	routes := func(r chi.Router) {
		r.Get("/health", healthH.Health)
		r.Get("/metrics", healthH.Metrics)
		r.Post("/procedures", procH.Create)

		r.Get("/sessions/{id}", sessH.Get)
		r.Post("/sessions/{id}/pause", sessH.Pause)
		r.Post("/sessions/{id}/resume", sessH.Resume)
		r.Post("/sessions/{id}/cancel", sessH.Cancel)
	}

	routes(r)
	if prefix = "/" + strings.Trim(prefix, "/"); prefix != "/" {
		r.Route(prefix, routes)
	}

	return r
}
