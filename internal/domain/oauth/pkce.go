// Package oauth holds the protocol primitives of the OAuth2 authorization-code
// flow with PKCE: verifier/challenge generation and anti-CSRF state tokens.
package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// verifierBytes is the number of random bytes behind a code verifier.
	verifierBytes = 32

	// stateBytes gives state tokens 128 bits of entropy, which keeps
	// collisions with stored account references negligible.
	stateBytes = 16

	// MethodS256 is the only code challenge method the broker issues.
	MethodS256 = "S256"
)

// PKCE is a code verifier with its derived S256 challenge.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// GeneratePKCE returns a fresh verifier/challenge pair.
// It holds no state and is safe for concurrent use.
func GeneratePKCE() (PKCE, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return PKCE{}, fmt.Errorf("generate pkce verifier: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(buf)
	return PKCE{
		Verifier:  verifier,
		Challenge: ChallengeFor(verifier),
		Method:    MethodS256,
	}, nil
}

// ChallengeFor computes base64url(SHA-256(verifier)) over the verifier's ASCII bytes.
func ChallengeFor(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns a random URL-safe anti-CSRF state token.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
