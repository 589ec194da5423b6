package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/opsboard/internal/domain"
	"github.com/Strob0t/opsboard/internal/domain/connection"
	"github.com/Strob0t/opsboard/internal/domain/secret"
	"github.com/Strob0t/opsboard/internal/port/database"
)

// memStore is an in-memory database.Store. Rows keep insertion order; seq
// breaks ties the way the postgres identity column does.
type memStore struct {
	mu      sync.Mutex
	seq     int64
	conns   []*memConn
	secrets []*memSecret
	failOn  map[string]error
}

type memConn struct {
	c   connection.Connection
	seq int64
}

type memSecret struct {
	r   secret.Record
	seq int64
}

var _ database.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{failOn: map[string]error{}}
}

func (m *memStore) fail(op string) error {
	return m.failOn[op]
}

func (m *memStore) next() int64 {
	m.seq++
	return m.seq
}

func (m *memStore) CreateConnection(_ context.Context, c *connection.Connection) (*connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateConnection"); err != nil {
		return nil, err
	}
	row := *c
	row.ID = uuid.NewString()
	row.Scopes = append([]string(nil), c.Scopes...)
	row.CreatedAt = time.Now()
	row.UpdatedAt = row.CreatedAt
	m.conns = append(m.conns, &memConn{c: row, seq: m.next()})
	out := row
	return &out, nil
}

func (m *memStore) FindPendingConnection(_ context.Context, provider, state string) (*connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *memConn
	for _, mc := range m.conns {
		if mc.c.Provider == provider && mc.c.AccountRef == state && mc.c.Status == connection.StatusPending {
			if best == nil || mc.seq > best.seq {
				best = mc
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("pending connection %s: %w", provider, domain.ErrNotFound)
	}
	out := best.c
	return &out, nil
}

func (m *memStore) LatestConnection(_ context.Context, provider string) (*connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *memConn
	for _, mc := range m.conns {
		if mc.c.Provider == provider && (best == nil || mc.seq > best.seq) {
			best = mc
		}
	}
	if best == nil {
		return nil, fmt.Errorf("connection %s: %w", provider, domain.ErrNotFound)
	}
	out := best.c
	return &out, nil
}

func (m *memStore) find(id string) (*memConn, error) {
	for _, mc := range m.conns {
		if mc.c.ID == id {
			return mc, nil
		}
	}
	return nil, fmt.Errorf("connection %s: %w", id, domain.ErrNotFound)
}

func (m *memStore) UpdateConnectionStatus(_ context.Context, id string, status connection.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, err := m.find(id)
	if err != nil {
		return err
	}
	mc.c.Status = status
	mc.c.UpdatedAt = time.Now()
	mc.seq = m.next()
	return nil
}

func (m *memStore) ApplyConnectionSuccess(_ context.Context, id, accountRef string, scopes []string, expiresAt *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ApplyConnectionSuccess"); err != nil {
		return err
	}
	mc, err := m.find(id)
	if err != nil {
		return err
	}
	mc.c.Status = connection.StatusConnected
	mc.c.AccountRef = accountRef
	mc.c.Scopes = append([]string(nil), scopes...)
	if expiresAt != nil {
		v := *expiresAt
		mc.c.ExpiresAt = &v
	} else {
		mc.c.ExpiresAt = nil
	}
	mc.c.UpdatedAt = time.Now()
	mc.seq = m.next()
	return nil
}

func (m *memStore) InsertSecret(_ context.Context, r *secret.Record) (*secret.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertSecret"); err != nil {
		return nil, err
	}
	row := *r
	row.ID = uuid.NewString()
	if row.RotatedAt.IsZero() {
		row.RotatedAt = time.Now()
	}
	m.secrets = append(m.secrets, &memSecret{r: row, seq: m.next()})
	out := row
	return &out, nil
}

func (m *memStore) LatestSecret(_ context.Context, provider, name string) (*secret.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("LatestSecret"); err != nil {
		return nil, err
	}
	var best *memSecret
	for _, ms := range m.secrets {
		if ms.r.Provider == provider && ms.r.Name == name && (best == nil || ms.seq > best.seq) {
			best = ms
		}
	}
	if best == nil {
		return nil, fmt.Errorf("secret %s: %w", name, domain.ErrNotFound)
	}
	out := best.r
	return &out, nil
}

func (m *memStore) MarkSecretValidated(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.secrets {
		if ms.r.ID == id {
			t := at
			ms.r.LastValidatedAt = &t
			return nil
		}
	}
	return fmt.Errorf("secret %s: %w", id, domain.ErrNotFound)
}

// InTx runs fn directly; the memory store has no rollback.
func (m *memStore) InTx(_ context.Context, fn func(database.Store) error) error {
	return fn(m)
}

// Test inspection helpers.

func (m *memStore) connCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

func (m *memStore) secretCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.secrets)
}

func (m *memStore) conn(id string) connection.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, err := m.find(id)
	if err != nil {
		panic(err)
	}
	return mc.c
}

// corruptSecret replaces the cipher blob of the latest (provider, name) row.
func (m *memStore) corruptSecret(provider, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.secrets) - 1; i >= 0; i-- {
		if m.secrets[i].r.Provider == provider && m.secrets[i].r.Name == name {
			m.secrets[i].r.CipherBlob = "v1:AAAA.BBBB.CCCC"
			return
		}
	}
}
