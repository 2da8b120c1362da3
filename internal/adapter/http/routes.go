package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the protocol surface on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/healthz", h.Health)
	r.Get("/.well-known/agent.json", h.AgentCard)

	r.Post("/rpc", h.HandleRPC)
	r.Get("/events", h.HandleEvents)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/{taskID}", h.GetTask)
		r.Post("/{taskID}/status", h.UpdateTaskStatus)
		r.Post("/{taskID}/messages", h.AppendTaskMessage)
		r.Post("/{taskID}/artifacts", h.UpsertTaskArtifact)
	})
}
