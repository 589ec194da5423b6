// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/Strob0t/opsboard/internal/domain/connection"
	"github.com/Strob0t/opsboard/internal/domain/secret"
)

// Store is the port interface for the relational store behind the
// credential broker. Lookups that find nothing wrap domain.ErrNotFound.
type Store interface {
	// Connections
	CreateConnection(ctx context.Context, c *connection.Connection) (*connection.Connection, error)
	FindPendingConnection(ctx context.Context, provider, state string) (*connection.Connection, error)
	LatestConnection(ctx context.Context, provider string) (*connection.Connection, error)
	UpdateConnectionStatus(ctx context.Context, id string, status connection.Status) error
	ApplyConnectionSuccess(ctx context.Context, id, accountRef string, scopes []string, expiresAt *string) error

	// Secret records (append-only)
	InsertSecret(ctx context.Context, r *secret.Record) (*secret.Record, error)
	LatestSecret(ctx context.Context, provider, name string) (*secret.Record, error)
	MarkSecretValidated(ctx context.Context, id string, at time.Time) error

	// InTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error
}
