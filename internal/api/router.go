package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Schedule catalog
		r.Route("/times", func(r chi.Router) {
			r.Get("/", s.handleListTimes)
			r.Post("/", s.handleCreateTime)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTime)
				r.Patch("/", s.handleUpdateTime)
				r.Delete("/", s.handleDeleteTime)
			})
		})

		// Organizer registry and device state
		r.Route("/organizers", func(r chi.Router) {
			r.Get("/", s.handleListOrganizers)
			r.Post("/", s.handleCreateOrganizer)

			// Whole-profile share; the literal segment wins over {id}.
			r.Post("/shares", s.handleShareProfile)

			// Serial-number lookup for provisioning flows.
			r.Get("/serial/{serial}", s.handleGetOrganizerBySerial)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetOrganizer)
				r.Patch("/", s.handleUpdateOrganizer)
				r.Delete("/", s.handleDeleteOrganizer)

				r.Post("/shares", s.handleShareOrganizer)
				r.Delete("/shares/{principal}", s.handleUnshareOrganizer)

				r.Post("/resync", s.handleResyncOrganizer)

				r.Route("/columns", func(r chi.Router) {
					r.Get("/", s.handleListColumns)

					r.Route("/{index}", func(r chi.Router) {
						r.Get("/", s.handleGetColumn)
						r.Put("/", s.handleSetColumn)
						r.Delete("/", s.handleClearColumn)
					})
				})
			})
		})

		// Telemetry log
		r.Get("/telemetry", s.handleQueryTelemetry)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	if s.mqtt != nil {
		if err := s.mqtt.HealthCheck(r.Context()); err != nil {
			status["status"] = "degraded"
			status["mqtt"] = "disconnected"
		} else {
			status["mqtt"] = "connected"
		}
	}

	writeJSON(w, http.StatusOK, status)
}
