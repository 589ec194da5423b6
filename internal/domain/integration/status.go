// Package integration defines the computed connection-health report.
package integration

import "time"

// Status values reported per provider.
const (
	StatusConnected     = "connected"
	StatusPending       = "pending"
	StatusFailed        = "failed"
	StatusExpired       = "expired"
	StatusDisconnected  = "disconnected"
	StatusNotConfigured = "not_configured"
	StatusError         = "error"
)

// ProviderStatus is recomputed on every query and never persisted.
type ProviderStatus struct {
	Provider         string    `json:"provider"`
	Configured       bool      `json:"configured"`
	Connected        bool      `json:"connected"`
	Status           string    `json:"status"`
	CheckedAt        time.Time `json:"checkedAt"`
	Detail           string    `json:"detail,omitempty"`
	ExpiresAt        string    `json:"expiresAt,omitempty"`
	RefreshSupported bool      `json:"refreshSupported"`
}

// Report aggregates one ProviderStatus per integration, keyed by name.
type Report struct {
	GeneratedAt time.Time                 `json:"generatedAt"`
	Providers   map[string]ProviderStatus `json:"providers"`
}
