package postgres

import (
	"context"
	"time"

	"github.com/Strob0t/opsboard/internal/domain/secret"
)

const secretColumns = `id, secret_name, provider, cipher_blob, version, rotated_at, last_validated_at`

func scanSecret(row scannable) (secret.Record, error) {
	var r secret.Record
	err := row.Scan(&r.ID, &r.Name, &r.Provider, &r.CipherBlob, &r.Version, &r.RotatedAt, &r.LastValidatedAt)
	return r, err
}

// InsertSecret appends a record. A zero RotatedAt takes the database clock.
func (s *Store) InsertSecret(ctx context.Context, r *secret.Record) (*secret.Record, error) {
	version := r.Version
	if version == 0 {
		version = secret.InitialVersion
	}

	row := s.db.QueryRow(ctx,
		`INSERT INTO secret_records (secret_name, provider, cipher_blob, version, rotated_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, clock_timestamp()))
		 RETURNING `+secretColumns,
		r.Name, r.Provider, r.CipherBlob, version, nullTime(r.RotatedAt))

	created, err := scanSecret(row)
	if err != nil {
		return nil, notFoundWrap(err, "insert secret %s", r.Name)
	}
	return &created, nil
}

func (s *Store) LatestSecret(ctx context.Context, provider, name string) (*secret.Record, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+secretColumns+`
		 FROM secret_records
		 WHERE provider = $1 AND secret_name = $2
		 ORDER BY rotated_at DESC, seq DESC
		 LIMIT 1`, provider, name)

	r, err := scanSecret(row)
	if err != nil {
		return nil, notFoundWrap(err, "latest secret %s", name)
	}
	return &r, nil
}

func (s *Store) MarkSecretValidated(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE secret_records SET last_validated_at = $2 WHERE id = $1`, id, at)
	return execExpectOne(tag, err, "mark secret validated %s", id)
}
