package oauthclient

import (
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/Strob0t/opsboard/internal/domain/oauth"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
)

// ScopeSeparator controls how AuthorizeURL joins requested scopes.
type ScopeSeparator string

const (
	ScopesComma ScopeSeparator = ","
	ScopesSpace ScopeSeparator = " "
)

// AuthorizeURL builds an authorization-code URL carrying state and an S256
// challenge. Scopes are joined with sep because providers disagree on the
// separator oauth2.Config would use.
func AuthorizeURL(authURL string, cfg oauthprovider.Config, state, challenge string, sep ScopeSeparator) string {
	conf := oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Endpoint:    oauth2.Endpoint{AuthURL: authURL},
	}
	return conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", strings.Join(cfg.Scopes, string(sep))),
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", oauth.MethodS256),
	)
}

// ExchangeForm is the token request for an authorization code.
func ExchangeForm(cfg oauthprovider.Config, code, verifier string) url.Values {
	return url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {cfg.RedirectURI},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"code_verifier": {verifier},
	}
}

// RefreshForm is the token request for a refresh token. It carries no
// PKCE verifier.
func RefreshForm(cfg oauthprovider.Config, refreshToken string) url.Values {
	return url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"redirect_uri":  {cfg.RedirectURI},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
	}
}
