package slack

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Strob0t/opsboard/internal/adapter/oauthclient"
	"github.com/Strob0t/opsboard/internal/domain/connection"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
)

const (
	providerName = "slack"

	defaultAuthURL  = "https://slack.com/oauth/v2/authorize"
	defaultTokenURL = "https://slack.com/api/oauth.v2.access"
)

// Provider implements oauthprovider.Provider for Slack's OAuth v2 flow.
//
// Slack nests identity and, for user-token installs, the token itself:
// the workspace is team.id, the installing user is authed_user.id, and a
// user token lives at authed_user.access_token. Token responses are HTTP
// 200 with an "ok" flag carrying success.
type Provider struct {
	authURL  string
	tokenURL string
	client   *oauthclient.Client
}

// NewProvider returns a Slack provider. Empty endpoint options select the
// public Slack endpoints.
func NewProvider(opts oauthprovider.Options) *Provider {
	p := &Provider{
		authURL:  defaultAuthURL,
		tokenURL: defaultTokenURL,
		client:   oauthclient.New(providerName, opts),
	}
	if opts.AuthURL != "" {
		p.authURL = opts.AuthURL
	}
	if opts.TokenURL != "" {
		p.tokenURL = opts.TokenURL
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

	ok := status >= http.StatusOK && status < http.StatusMultipleChoices
	if !ok || !payload.Bool("ok") || accessToken(payload) == "" {
		return nil, oauthprovider.NewExchangeError(payload.String("error"), status)
	}
	return payload, nil
}

func (p *Provider) Extract(payload oauthprovider.TokenPayload, prior string) oauthprovider.Identity {
	account := payload.FirstString([]string{"team", "id"}, []string{"authed_user", "id"})
	if account == "" {
		account = prior
	}

	expires := payload.Seconds("expires_in")
	if expires == nil {
		expires = payload.Seconds("authed_user", "expires_in")
	}

	return oauthprovider.Identity{
		AccountRef:   account,
		Scopes:       scopes(payload),
		AccessToken:  accessToken(payload),
		RefreshToken: payload.FirstString([]string{"refresh_token"}, []string{"authed_user", "refresh_token"}),
		TokenType:    payload.FirstString([]string{"token_type"}, []string{"authed_user", "token_type"}),
		ExpiresIn:    expires,
	}
}

func accessToken(payload oauthprovider.TokenPayload) string {
	return payload.FirstString([]string{"access_token"}, []string{"authed_user", "access_token"})
}

// scopes returns the granted scopes, or nil when Slack reported none.
func scopes(payload oauthprovider.TokenPayload) []string {
	raw := payload.FirstString([]string{"scope"}, []string{"authed_user", "scope"})
	if s := connection.SplitScopes(raw); len(s) > 0 {
		return s
	}
	return nil
}
