package oauthprovider

import (
	"net/http"
	"time"
)

// Options carries the construction parameters shared by all providers.
// Empty endpoint fields mean "use the provider's public endpoint".
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	AuthURL    string
	TokenURL   string
	APIURL     string

	// BreakerMaxFailures and BreakerTimeout configure the per-provider
	// circuit breaker around token endpoint calls.
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}
