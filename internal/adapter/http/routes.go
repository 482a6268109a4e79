package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Routing
		r.Post("/classify", h.ClassifyRequest)
		r.Post("/analyze", h.AnalyzeRequest)
		r.Post("/route", h.RouteRequest)

		// Agent registry
		r.Get("/agents", h.ListAgents)

		// Approvals
		r.Get("/approvals", h.ListApprovals)
		r.Post("/approvals/{id}", h.ResolveApproval)

		// Gate
		r.Post("/gate/evaluate", h.EvaluateAction)
		r.Get("/gate/confidence/{type}", h.GetConfidence)
		r.Get("/gate/decisions", h.ListDecisions)

		// Handoff history
		r.Get("/handoffs/stats", h.HandoffStats)
		r.Get("/runs/{id}/handoffs", h.RunHandoffs)

		// Health
		r.Get("/health", h.Health)
	})

	// WebSocket event stream (outside the versioned API prefix)
	r.Get("/ws", h.Hub.HandleWS)
}
