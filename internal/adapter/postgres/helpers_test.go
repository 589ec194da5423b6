package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/opsboard/internal/domain"
)

func TestNotFoundWrapClassifies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"unique", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "oauth_connections_pkey"}, domain.ErrConflict},
		{"check", &pgconn.PgError{Code: pgCheckViolation, ConstraintName: "oauth_connections_status_check"}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := notFoundWrap(tt.err, "latest connection %s", "slack")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNotFoundWrapKeepsOtherErrors(t *testing.T) {
	cause := &pgconn.PgError{Code: "57014"}
	err := notFoundWrap(cause, "insert secret %s", "slack.access_token")

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "57014" {
		t.Fatalf("expected original pg error to be wrapped, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Fatal("unrelated error must not read as not found")
	}
}

func TestExecExpectOne(t *testing.T) {
	if err := execExpectOne(pgconn.NewCommandTag("UPDATE 1"), nil, "mark %s", "x"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := execExpectOne(pgconn.NewCommandTag("UPDATE 0"), nil, "mark %s", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	err := execExpectOne(pgconn.CommandTag{}, &pgconn.PgError{Code: pgCheckViolation}, "update %s", "x")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
