// Package oauthprovider defines the port for per-provider OAuth2 adapters and
// the shapes they exchange with the credential broker.
package oauthprovider

import (
	"context"
	"fmt"
	"time"
)

// Config is the per-call provider configuration. It is resolved fresh for
// every flow entry point and never persisted.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	RedirectURI  string
}

// Configured reports whether every field required by the flow is present.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && len(c.Scopes) > 0 && c.RedirectURI != ""
}

// Identity is what the broker needs from a token response.
type Identity struct {
	AccountRef   string
	Scopes       []string
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn is nil when the provider did not report an expiry.
	ExpiresIn *time.Duration
}

// ExchangeError is an upstream failure during code exchange or refresh.
// Code is the provider-reported error code, or "http_<status>" when the
// provider gave none.
type ExchangeError struct {
	Code   string
	Status int
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("oauth exchange failed: %s (HTTP %d)", e.Code, e.Status)
}

// NewExchangeError builds an ExchangeError, synthesizing the code from the
// HTTP status when code is empty.
func NewExchangeError(code string, status int) *ExchangeError {
	if code == "" {
		code = fmt.Sprintf("http_%d", status)
	}
	return &ExchangeError{Code: code, Status: status}
}

// Provider is the port implemented by every OAuth provider variant. New
// providers add an implementation; the broker holds no provider-specific
// branches.
type Provider interface {
	// Name returns the provider key (e.g. "slack", "linear").
	Name() string

	// AuthorizeURL builds the URL the user is sent to, carrying the state
	// and an S256 code challenge.
	AuthorizeURL(cfg Config, state, challenge string) string

	// ExchangeCode trades an authorization code and PKCE verifier for tokens.
	ExchangeCode(ctx context.Context, cfg Config, code, verifier string) (TokenPayload, error)

	// Refresh trades a refresh token for a new token payload.
	Refresh(ctx context.Context, cfg Config, refreshToken string) (TokenPayload, error)

	// Extract reads identity and tokens from a payload. prior is the
	// previously known account reference, used when the payload names none.
	Extract(payload TokenPayload, prior string) Identity
}
