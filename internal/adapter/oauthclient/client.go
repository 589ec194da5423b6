// Package oauthclient is the HTTP collaborator shared by the OAuth provider
// adapters. Every call is bounded by a timeout, capped in response size and
// routed through a per-provider circuit breaker.
package oauthclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/opsboard/internal/domain/oauth"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
	"github.com/Strob0t/opsboard/internal/resilience"
)

const (
	// maxResponseBytes caps how much of a provider response is read.
	maxResponseBytes = 1 << 20

	defaultTimeout        = 15 * time.Second
	defaultBreakerMax     = 5
	defaultBreakerTimeout = 30 * time.Second
)

// errServerStatus marks a 5xx response so the breaker counts it.
var errServerStatus = errors.New("provider server error")

// Client performs token-endpoint and API calls for one provider.
type Client struct {
	provider string
	http     *http.Client
	timeout  time.Duration
	breaker  *resilience.Breaker
}

// New returns a Client for the named provider. Zero-valued options fall back
// to a 15s timeout and a 5-failure / 30s breaker.
func New(provider string, opts oauthprovider.Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxFailures := opts.BreakerMaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultBreakerMax
	}
	breakerTimeout := opts.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = defaultBreakerTimeout
	}

	return &Client{
		provider: provider,
		http:     hc,
		timeout:  timeout,
		breaker: resilience.NewBreaker(maxFailures, breakerTimeout,
			resilience.WithStateChange(func(from, to resilience.State) {
				slog.Warn("provider circuit breaker state change",
					"provider", provider, "from", from, "to", to)
			}),
		),
	}
}

// BreakerState exposes the breaker state for diagnostics.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// PostForm sends an application/x-www-form-urlencoded POST and decodes the
// JSON object response. Non-2xx responses are not errors here: the payload
// and status are returned so the adapter can read the provider's error code.
// An open breaker yields an ExchangeError with code provider_unavailable.
func (c *Client) PostForm(ctx context.Context, endpoint string, form url.Values) (oauthprovider.TokenPayload, int, error) {
	return c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// PostJSON sends a JSON POST with the given Authorization header value.
func (c *Client) PostJSON(ctx context.Context, endpoint, authorization string, body any) (oauthprovider.TokenPayload, int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: marshal request: %w", c.provider, err)
	}
	return c.send(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		return req, nil
	})
}

func (c *Client) send(ctx context.Context, build func(context.Context) (*http.Request, error)) (oauthprovider.TokenPayload, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		payload oauthprovider.TokenPayload
		status  int
	)
	err := c.breaker.Execute(func() error {
		req, err := build(ctx)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		payload, status, err = c.do(req)
		if err != nil {
			return err
		}
		if status >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	})

	switch {
	case err == nil, errors.Is(err, errServerStatus):
		return payload, status, nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		return nil, 0, oauthprovider.NewExchangeError(oauth.CodeProviderUnavailable, http.StatusServiceUnavailable)
	default:
		return nil, 0, fmt.Errorf("%s: %w", c.provider, err)
	}
}

func (c *Client) do(req *http.Request) (oauthprovider.TokenPayload, int, error) {
	resp, err := c.http.Do(req) //nolint:gosec // endpoint comes from provider config
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", req.URL.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	return decodeObject(body), resp.StatusCode, nil
}

// decodeObject returns the body as a JSON object, or an empty payload when
// it is not one.
func decodeObject(body []byte) oauthprovider.TokenPayload {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return oauthprovider.TokenPayload{}
	}
	return oauthprovider.TokenPayload(obj)
}
