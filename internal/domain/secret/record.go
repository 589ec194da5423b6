// Package secret defines the append-only secret record and the envelope
// cipher used to protect its payload at rest.
package secret

import "time"

// Record is one immutable row of the secret ledger. A newer row for the same
// (Provider, Name) supersedes older ones; nothing is updated in place except
// LastValidatedAt.
type Record struct {
	ID         string `json:"id"`
	Name       string `json:"secret_name"`
	Provider   string `json:"provider"`
	CipherBlob string `json:"-"` // never expose in JSON
	// Version is advisory only: every insert writes 1 and "latest by
	// RotatedAt" decides which row wins.
	Version         int        `json:"version"`
	RotatedAt       time.Time  `json:"rotated_at"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
}

// InitialVersion is written on every insert.
const InitialVersion = 1

// StatePayload is stored under StateName when a flow starts.
type StatePayload struct {
	ConnectionID string `json:"connectionId"`
	CodeVerifier string `json:"codeVerifier"`
	RedirectURI  string `json:"redirectUri"`
	CreatedAt    string `json:"createdAt"`
}

// AccessTokenPayload is stored under AccessTokenName after issuance or refresh.
type AccessTokenPayload struct {
	AccessToken string   `json:"accessToken"`
	TokenType   string   `json:"tokenType,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	AccountRef  string   `json:"accountRef,omitempty"`
	ExpiresAt   string   `json:"expiresAt,omitempty"`
	IssuedAt    string   `json:"issuedAt"`
}

// RefreshTokenPayload is stored under RefreshTokenName when the provider
// returns a refresh token.
type RefreshTokenPayload struct {
	RefreshToken string `json:"refreshToken"`
	IssuedAt     string `json:"issuedAt"`
}
