package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the integrations API on r. The per-provider routes
// pass through limiter when it is non-nil.
func MountRoutes(r chi.Router, h *Handlers, limiter func(http.Handler) http.Handler) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.Ready)

	r.Route("/api/v1/integrations", func(r chi.Router) {
		r.Get("/status", h.GetIntegrationsStatus)

		r.Route("/{provider}", func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter)
			}
			r.Post("/oauth/start", h.StartOAuth)
			r.Get("/oauth/callback", h.CompleteOAuth)
			r.Post("/refresh", h.RefreshProvider)
		})
	})
}
