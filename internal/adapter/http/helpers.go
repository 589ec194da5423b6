package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/opsboard/internal/domain/oauth"
	"github.com/Strob0t/opsboard/internal/service"
)

const maxProviderLen = 64

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// providerParam returns the {provider} path segment, lowercased. It writes a
// 404 and returns false when the segment is not a plausible provider key.
func providerParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := strings.ToLower(chi.URLParam(r, "provider"))
	if !validProviderName(name) {
		writeError(w, http.StatusNotFound, name, oauth.CodeUnsupportedProvider)
		return "", false
	}
	return name, true
}

func validProviderName(name string) bool {
	if name == "" || len(name) > maxProviderLen {
		return false
	}
	for _, c := range name {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' && c != '_' {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	OK       bool   `json:"ok"`
	Provider string `json:"provider,omitempty"`
	Error    string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, provider, code string) {
	writeJSON(w, status, errorResponse{Provider: provider, Error: code})
}

// writeBrokerError maps a broker failure to a status code by its kind:
// unsupported provider 404, other config and protocol errors 400, upstream
// 502, everything else 500 with the cause logged server-side only.
func writeBrokerError(w http.ResponseWriter, r *http.Request, provider string, err error) {
	var be *service.BrokerError
	if !errors.As(err, &be) {
		writeInternalError(w, r, err)
		return
	}

	switch be.Kind {
	case service.KindConfig:
		status := http.StatusBadRequest
		if be.Code == oauth.CodeUnsupportedProvider {
			status = http.StatusNotFound
		}
		writeError(w, status, provider, be.Code)
	case service.KindProtocol:
		writeError(w, http.StatusBadRequest, provider, be.Code)
	case service.KindUpstream:
		writeError(w, http.StatusBadGateway, provider, be.Code)
	default:
		writeInternalError(w, r, err)
	}
}

// writeInternalError logs the actual error server-side and returns a generic code to the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "", oauth.CodeInternal)
}
