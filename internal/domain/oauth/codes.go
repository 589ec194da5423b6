package oauth

// Error codes surfaced to callers of the credential broker. Provider-reported
// codes (e.g. "invalid_grant") are passed through verbatim alongside these.
const (
	CodeUnsupportedProvider   = "unsupported_provider"
	CodeProviderNotConfigured = "provider_not_configured"
	CodeMissingState          = "missing_state"
	CodeInvalidState          = "invalid_state"
	CodeMissingCode           = "missing_code"
	CodeMissingPKCEVerifier   = "missing_pkce_verifier"
	CodeExchangeFailed        = "oauth_exchange_failed"
	CodeProviderUnavailable   = "provider_unavailable"

	CodeNoConnectedAccount  = "no_connected_account"
	CodeRefreshTokenMissing = "refresh_token_missing"
	CodeRefreshFailed       = "oauth_refresh_failed"

	CodeInternal = "internal_error"
)
