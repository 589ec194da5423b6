// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a write collided with an existing record.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates a write violated a column constraint, such as
	// an unknown connection status.
	ErrValidation = errors.New("validation error")
)
