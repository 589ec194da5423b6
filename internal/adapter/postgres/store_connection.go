package postgres

import (
	"context"

	"github.com/Strob0t/opsboard/internal/domain/connection"
)

const connectionColumns = `id, provider, account_ref, auth_type, scopes, status, expires_at, created_at, updated_at`

func scanConnection(row scannable) (connection.Connection, error) {
	var (
		c      connection.Connection
		scopes string
		status string
	)
	err := row.Scan(&c.ID, &c.Provider, &c.AccountRef, &c.AuthType, &scopes, &status, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.Scopes = connection.SplitScopes(scopes)
	c.Status = connection.Status(status)
	return c, nil
}

func (s *Store) CreateConnection(ctx context.Context, c *connection.Connection) (*connection.Connection, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO oauth_connections (provider, account_ref, auth_type, scopes, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+connectionColumns,
		c.Provider, c.AccountRef, c.AuthType, connection.JoinScopes(c.Scopes), string(c.Status), c.ExpiresAt)

	created, err := scanConnection(row)
	if err != nil {
		return nil, notFoundWrap(err, "create connection %s", c.Provider)
	}
	return &created, nil
}

// FindPendingConnection matches only pending rows, so a connected row whose
// account_ref happens to equal the state never resolves.
func (s *Store) FindPendingConnection(ctx context.Context, provider, state string) (*connection.Connection, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+connectionColumns+`
		 FROM oauth_connections
		 WHERE provider = $1 AND account_ref = $2 AND status = 'pending'
		 ORDER BY updated_at DESC, seq DESC
		 LIMIT 1`, provider, state)

	c, err := scanConnection(row)
	if err != nil {
		return nil, notFoundWrap(err, "find pending connection %s", provider)
	}
	return &c, nil
}

func (s *Store) LatestConnection(ctx context.Context, provider string) (*connection.Connection, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+connectionColumns+`
		 FROM oauth_connections
		 WHERE provider = $1
		 ORDER BY updated_at DESC, seq DESC
		 LIMIT 1`, provider)

	c, err := scanConnection(row)
	if err != nil {
		return nil, notFoundWrap(err, "latest connection %s", provider)
	}
	return &c, nil
}

func (s *Store) UpdateConnectionStatus(ctx context.Context, id string, status connection.Status) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE oauth_connections SET status = $2, updated_at = clock_timestamp() WHERE id = $1`,
		id, string(status))
	return execExpectOne(tag, err, "update connection status %s", id)
}

func (s *Store) ApplyConnectionSuccess(ctx context.Context, id, accountRef string, scopes []string, expiresAt *string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE oauth_connections
		 SET status = 'connected', account_ref = $2, scopes = $3, expires_at = $4, updated_at = clock_timestamp()
		 WHERE id = $1`,
		id, accountRef, connection.JoinScopes(scopes), expiresAt)
	return execExpectOne(tag, err, "apply connection success %s", id)
}
