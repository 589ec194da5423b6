// Package messagequeue defines the port for publishing connection lifecycle
// events to other services.
package messagequeue

import "context"

// SubjectFor scopes a lifecycle subject to one provider, e.g.
// integrations.connection.connected.slack.
func SubjectFor(base, provider string) string {
	return base + "." + provider
}

// Publisher is the port interface for fire-and-forget event publication.
type Publisher interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close shuts down the underlying connection.
	Close() error
}

// Subjects published by the credential broker.
const (
	SubjectConnectionConnected     = "integrations.connection.connected"
	SubjectConnectionFailed        = "integrations.connection.failed"
	SubjectConnectionRefreshed     = "integrations.connection.refreshed"
	SubjectConnectionRefreshFailed = "integrations.connection.refresh_failed"
)

// ConnectionEvent is the JSON body of every integrations.connection.* message.
// It never carries token material.
type ConnectionEvent struct {
	Provider     string `json:"provider"`
	ConnectionID string `json:"connection_id,omitempty"`
	AccountRef   string `json:"account_ref,omitempty"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

// Nop discards every message. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }
func (Nop) Close() error                                  { return nil }
