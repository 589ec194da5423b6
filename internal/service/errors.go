package service

import (
	"errors"

	"github.com/Strob0t/opsboard/internal/domain/oauth"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
)

// ErrorKind classifies broker failures for transport mapping.
type ErrorKind string

const (
	// KindConfig covers unsupported or unconfigured providers. No state is
	// touched.
	KindConfig ErrorKind = "config"
	// KindProtocol covers malformed or unmatched callbacks.
	KindProtocol ErrorKind = "protocol"
	// KindUpstream covers provider token endpoint failures.
	KindUpstream ErrorKind = "upstream"
	// KindInternal covers store and crypto failures.
	KindInternal ErrorKind = "internal"
)

// BrokerError is returned by the credential broker. Code is the
// caller-facing error code; Err, when set, is the underlying cause and is
// only ever logged.
type BrokerError struct {
	Code string
	Kind ErrorKind
	Err  error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return "oauth " + e.Code + ": " + e.Err.Error()
	}
	return "oauth " + e.Code
}

func (e *BrokerError) Unwrap() error { return e.Err }

func configError(code string) *BrokerError {
	return &BrokerError{Code: code, Kind: KindConfig}
}

func protocolError(code string) *BrokerError {
	return &BrokerError{Code: code, Kind: KindProtocol}
}

func internalError(err error) *BrokerError {
	return &BrokerError{Code: oauth.CodeInternal, Kind: KindInternal, Err: err}
}

// upstreamError passes a provider-reported code through, or labels the
// failure with fallback.
func upstreamError(err error, fallback string) *BrokerError {
	var xe *oauthprovider.ExchangeError
	if errors.As(err, &xe) {
		return &BrokerError{Code: xe.Code, Kind: KindUpstream, Err: err}
	}
	return &BrokerError{Code: fallback, Kind: KindUpstream, Err: err}
}

func asBrokerError(err error) *BrokerError {
	var be *BrokerError
	if errors.As(err, &be) {
		return be
	}
	return internalError(err)
}

// ErrorCode extracts the caller-facing code from err, defaulting to
// internal_error.
func ErrorCode(err error) string {
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Code
	}
	return oauth.CodeInternal
}
