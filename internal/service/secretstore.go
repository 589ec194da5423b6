package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/opsboard/internal/domain"
	"github.com/Strob0t/opsboard/internal/domain/secret"
	"github.com/Strob0t/opsboard/internal/port/database"
)

// SecretStore is the append-only encrypted secret ledger. Every Put adds a
// row; Get reads the most recently rotated row for (provider, name).
type SecretStore struct {
	db     database.Store
	cipher *secret.Cipher
}

// NewSecretStore creates a SecretStore. The cipher's key is derived once at
// startup and never changes.
func NewSecretStore(s database.Store, cipher *secret.Cipher) *SecretStore {
	return &SecretStore{db: s, cipher: cipher}
}

// WithStore returns a SecretStore bound to s (typically a transaction).
func (s *SecretStore) WithStore(db database.Store) *SecretStore {
	return &SecretStore{db: db, cipher: s.cipher}
}

// Put encrypts payload and appends it as the newest record for
// (provider, name).
func (s *SecretStore) Put(ctx context.Context, provider, name string, payload any) (*secret.Record, error) {
	blob, err := s.cipher.Encrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}
	r, err := s.db.InsertSecret(ctx, &secret.Record{
		Name:       name,
		Provider:   provider,
		CipherBlob: blob,
		Version:    secret.InitialVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("insert secret: %w", err)
	}
	return r, nil
}

// Get decodes the latest record for (provider, name) into dst. ok is false
// when no record exists or the record cannot be decrypted; a corrupt record
// is treated as absent and never surfaces as an error. Store failures do.
func (s *SecretStore) Get(ctx context.Context, provider, name string, dst any) (rec *secret.Record, ok bool, err error) {
	r, err := s.db.LatestSecret(ctx, provider, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load secret: %w", err)
	}
	if !s.cipher.DecryptInto(r.CipherBlob, dst) {
		slog.WarnContext(ctx, "secret record unreadable, treating as absent",
			"provider", provider, "record_id", r.ID)
		return r, false, nil
	}
	return r, true, nil
}

// MarkValidated stamps last_validated_at on a record.
func (s *SecretStore) MarkValidated(ctx context.Context, id string, at time.Time) error {
	return s.db.MarkSecretValidated(ctx, id, at)
}
