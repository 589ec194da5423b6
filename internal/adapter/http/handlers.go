package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Strob0t/opsboard/internal/domain/integration"
	"github.com/Strob0t/opsboard/internal/service"
)

// Broker is the credential broker surface the handlers drive.
type Broker interface {
	Start(ctx context.Context, provider string) (*service.StartResult, error)
	Complete(ctx context.Context, provider string, params service.CallbackParams) (*service.CompleteResult, error)
	Refresh(ctx context.Context, provider string) *service.RefreshResult
}

// StatusReporter builds the aggregated integrations report.
type StatusReporter interface {
	Report(ctx context.Context) integration.Report
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies. Store is optional; without
// it /ready always succeeds.
type Handlers struct {
	Broker Broker
	Status StatusReporter
	Store  Pinger
}

type startResponse struct {
	OK bool `json:"ok"`
	*service.StartResult
}

type completeResponse struct {
	OK bool `json:"ok"`
	*service.CompleteResult
}

type refreshResponse struct {
	OK bool `json:"ok"`
	*service.RefreshResult
}

type statusResponse struct {
	OK bool `json:"ok"`
	integration.Report
}

// StartOAuth handles POST /api/v1/integrations/{provider}/oauth/start
func (h *Handlers) StartOAuth(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(w, r)
	if !ok {
		return
	}
	res, err := h.Broker.Start(r.Context(), provider)
	if err != nil {
		writeBrokerError(w, r, provider, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{OK: true, StartResult: res})
}

// CompleteOAuth handles GET /api/v1/integrations/{provider}/oauth/callback
//
// The provider redirects here with state and either code or error.
func (h *Handlers) CompleteOAuth(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	res, err := h.Broker.Complete(r.Context(), provider, service.CallbackParams{
		State: q.Get("state"),
		Code:  q.Get("code"),
		Error: q.Get("error"),
	})
	if err != nil {
		writeBrokerError(w, r, provider, err)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{OK: true, CompleteResult: res})
}

// RefreshProvider handles POST /api/v1/integrations/{provider}/refresh
//
// A failed refresh is reported in the body, never as an error status.
func (h *Handlers) RefreshProvider(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{OK: true, RefreshResult: h.Broker.Refresh(r.Context(), provider)})
}

// GetIntegrationsStatus handles GET /api/v1/integrations/status
func (h *Handlers) GetIntegrationsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{OK: true, Report: h.Status.Report(r.Context())})
}

// Ready handles GET /ready. It fails with 503 while the database is
// unreachable so a load balancer stops routing OAuth callbacks here.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
