// Package linear implements the Linear OAuth provider and its API-key
// validation probe.
package linear

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Strob0t/opsboard/internal/adapter/oauthclient"
	"github.com/Strob0t/opsboard/internal/domain/connection"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
)

const (
	providerName = "linear"

	defaultAuthURL  = "https://linear.app/oauth/authorize"
	defaultTokenURL = "https://api.linear.app/oauth/token"
	defaultAPIURL   = "https://api.linear.app/graphql"
)

// Provider implements oauthprovider.Provider for Linear. Token responses
// are flat: tokens, expiry and the organization id sit at the top level.
type Provider struct {
	authURL  string
	tokenURL string
	apiURL   string
	client   *oauthclient.Client
}

// NewProvider returns a Linear provider. Empty endpoint options select the
// public Linear endpoints.
func NewProvider(opts oauthprovider.Options) *Provider {
	p := &Provider{
		authURL:  defaultAuthURL,
		tokenURL: defaultTokenURL,
		apiURL:   defaultAPIURL,
		client:   oauthclient.New(providerName, opts),
	}
	if opts.AuthURL != "" {
		p.authURL = opts.AuthURL
	}
	if opts.TokenURL != "" {
		p.tokenURL = opts.TokenURL
	}
	if opts.APIURL != "" {
		p.apiURL = opts.APIURL
	}
	return p
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) AuthorizeURL(cfg oauthprovider.Config, state, challenge string) string {
	return oauthclient.AuthorizeURL(p.authURL, cfg, state, challenge, oauthclient.ScopesComma)
}

func (p *Provider) ExchangeCode(ctx context.Context, cfg oauthprovider.Config, code, verifier string) (oauthprovider.TokenPayload, error) {
	return p.token(ctx, oauthclient.ExchangeForm(cfg, code, verifier))
}

func (p *Provider) Refresh(ctx context.Context, cfg oauthprovider.Config, refreshToken string) (oauthprovider.TokenPayload, error) {
	return p.token(ctx, oauthclient.RefreshForm(cfg, refreshToken))
}

func (p *Provider) token(ctx context.Context, form url.Values) (oauthprovider.TokenPayload, error) {
	payload, status, err := p.client.PostForm(ctx, p.tokenURL, form)
	if err != nil {
		return nil, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices || payload.String("access_token") == "" {
		return nil, oauthprovider.NewExchangeError(payload.String("error"), status)
	}
	return payload, nil
}

func (p *Provider) Extract(payload oauthprovider.TokenPayload, prior string) oauthprovider.Identity {
	account := payload.FirstString([]string{"organization_id"}, []string{"team_id"})
	if account == "" {
		account = prior
	}

	var scopes []string
	if s := connection.SplitScopes(payload.String("scope")); len(s) > 0 {
		scopes = s
	}

	return oauthprovider.Identity{
		AccountRef:   account,
		Scopes:       scopes,
		AccessToken:  payload.String("access_token"),
		RefreshToken: payload.String("refresh_token"),
		TokenType:    payload.String("token_type"),
		ExpiresIn:    payload.Seconds("expires_in"),
	}
}
