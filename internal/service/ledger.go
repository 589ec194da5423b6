package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/opsboard/internal/domain/connection"
	"github.com/Strob0t/opsboard/internal/port/database"
)

// ConnectionLedger tracks connections through pending, connected and failed.
type ConnectionLedger struct {
	db  database.Store
	now func() time.Time
}

// NewConnectionLedger creates a ledger over the given store.
func NewConnectionLedger(s database.Store) *ConnectionLedger {
	return &ConnectionLedger{db: s, now: time.Now}
}

// WithStore returns a ledger bound to s (typically a transaction) that shares
// this ledger's clock.
func (l *ConnectionLedger) WithStore(s database.Store) *ConnectionLedger {
	return &ConnectionLedger{db: s, now: l.now}
}

// CreatePending inserts a pending connection whose AccountRef carries the
// state token until the flow completes. The row expires ttl from now.
func (l *ConnectionLedger) CreatePending(ctx context.Context, provider, state string, scopes []string, ttl time.Duration) (*connection.Connection, error) {
	expiresAt := connection.FormatTimestamp(l.now().Add(ttl))
	c, err := l.db.CreateConnection(ctx, &connection.Connection{
		Provider:   provider,
		AccountRef: state,
		AuthType:   connection.AuthTypeOAuth2PKCE,
		Scopes:     scopes,
		Status:     connection.StatusPending,
		ExpiresAt:  &expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create pending connection: %w", err)
	}
	return c, nil
}

// FindPendingByState returns the most recently updated pending connection
// whose AccountRef equals state. Connected or failed rows never match.
func (l *ConnectionLedger) FindPendingByState(ctx context.Context, provider, state string) (*connection.Connection, error) {
	return l.db.FindPendingConnection(ctx, provider, state)
}

// MarkFailed moves a connection to failed.
func (l *ConnectionLedger) MarkFailed(ctx context.Context, id string) error {
	if err := l.db.UpdateConnectionStatus(ctx, id, connection.StatusFailed); err != nil {
		return fmt.Errorf("mark connection %s failed: %w", id, err)
	}
	return nil
}

// ApplySuccess marks a connection connected and rewrites its identity,
// scopes and expiry. expiresAt nil clears any prior expiry.
func (l *ConnectionLedger) ApplySuccess(ctx context.Context, id, accountRef string, scopes []string, expiresAt *string) error {
	if err := l.db.ApplyConnectionSuccess(ctx, id, accountRef, scopes, expiresAt); err != nil {
		return fmt.Errorf("apply connection %s success: %w", id, err)
	}
	return nil
}

// Latest returns the most recently updated connection for provider,
// regardless of status.
func (l *ConnectionLedger) Latest(ctx context.Context, provider string) (*connection.Connection, error) {
	return l.db.LatestConnection(ctx, provider)
}
