// Package handlers provides the localhost REST API consumed by the form UI.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lingaphealth/fieldsync/internal/connectivity"
	"github.com/lingaphealth/fieldsync/internal/engine"
	"github.com/lingaphealth/fieldsync/internal/queue"
	"github.com/lingaphealth/fieldsync/internal/session"
	"github.com/lingaphealth/fieldsync/internal/status"
)

// Handler bundles the agent components behind the HTTP API.
type Handler struct {
	store   queue.Store
	tracker *status.Tracker
	engine  *engine.Engine
	tokens  *session.TokenStore
	monitor *connectivity.Monitor
}

// New creates the API handler.
func New(store queue.Store, tracker *status.Tracker, eng *engine.Engine,
	tokens *session.TokenStore, monitor *connectivity.Monitor) *Handler {
	return &Handler{
		store:   store,
		tracker: tracker,
		engine:  eng,
		tokens:  tokens,
		monitor: monitor,
	}
}

// Routes mounts all API routes on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/queue", func(r chi.Router) {
			r.Get("/", h.ListQueue)
			r.Delete("/", h.ClearQueue)
			r.Post("/{recordType}", h.EnqueueRecord)
			r.Delete("/{id}", h.RemoveRecord)
		})
		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", h.GetStatus)
			r.Post("/trigger", h.TriggerSync)
			r.Delete("/errors", h.ClearErrors)
		})
		r.Route("/session", func(r chi.Router) {
			r.Put("/token", h.SetToken)
			r.Delete("/token", h.ClearToken)
		})
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
