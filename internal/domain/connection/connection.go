// Package connection defines the OAuth connection lifecycle record.
package connection

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a connection.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConnected Status = "connected"
	StatusFailed    Status = "failed"
)

// AuthTypeOAuth2PKCE is the only auth type written by the broker today.
const AuthTypeOAuth2PKCE = "oauth2_pkce"

// TimestampLayout is fixed-width with millisecond precision so that lexical
// order of formatted values equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Connection is one authorization attempt against a provider.
//
// AccountRef is two-phase: while Status is pending it holds the anti-CSRF
// state token issued by Start; once connected it holds the remote account
// identifier (team, organization or user id).
type Connection struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	AccountRef string    `json:"account_ref"`
	AuthType   string    `json:"auth_type"`
	Scopes     []string  `json:"scopes"`
	Status     Status    `json:"status"`
	ExpiresAt  *string   `json:"expires_at,omitempty"` // TimestampLayout, UTC
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Expired reports whether ExpiresAt is set and strictly before now. The
// comparison is textual on the fixed-width representation.
func (c *Connection) Expired(now time.Time) bool {
	if c.ExpiresAt == nil || *c.ExpiresAt == "" {
		return false
	}
	return *c.ExpiresAt < FormatTimestamp(now)
}

// JoinScopes serializes an ordered scope set for storage.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, ",")
}

// SplitScopes parses a stored scope string, dropping blanks and duplicates
// while keeping first-seen order.
func SplitScopes(s string) []string {
	if s == "" {
		return []string{}
	}
	seen := make(map[string]bool)
	out := make([]string, 0, strings.Count(s, ",")+1)
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}
