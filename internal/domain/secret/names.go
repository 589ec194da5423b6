package secret

// StateName keys the PKCE verifier stored for a pending flow.
func StateName(provider, state string) string {
	return "oauth_state:" + provider + ":" + state
}

// AccessTokenName keys the access token issued for a connection.
func AccessTokenName(provider, connectionID string) string {
	return provider + ":access_token:" + connectionID
}

// RefreshTokenName keys the refresh token issued for a connection.
func RefreshTokenName(provider, connectionID string) string {
	return provider + ":refresh_token:" + connectionID
}
