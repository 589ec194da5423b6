package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Strob0t/opsboard/internal/config"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
)

// callbackPath is appended to the redirect base URL, with the provider name
// substituted, when a provider has no explicit redirect URI.
const callbackPath = "/api/v1/integrations/%s/oauth/callback"

// SecretSource reads secret values by key and masks known values in free
// text. *secrets.Vault satisfies it.
type SecretSource interface {
	Get(key string) string
	RedactString(s string) string
}

// ProviderConfigResolver assembles per-call provider configuration from the
// active config (non-secret fields) and the secret source (client secrets,
// API keys, bearer tokens). Nothing is cached, so a config or vault reload
// takes effect on the next call.
type ProviderConfigResolver struct {
	cfg     func() *config.Config
	secrets SecretSource
}

// NewProviderConfigResolver creates a resolver. cfg is typically
// (*config.Holder).Get.
func NewProviderConfigResolver(cfg func() *config.Config, secrets SecretSource) *ProviderConfigResolver {
	return &ProviderConfigResolver{cfg: cfg, secrets: secrets}
}

// Config returns the active configuration.
func (r *ProviderConfigResolver) Config() *config.Config {
	return r.cfg()
}

// Resolve returns the OAuth configuration for provider. Missing fields are
// left empty; callers check Configured.
func (r *ProviderConfigResolver) Resolve(provider string) oauthprovider.Config {
	cfg := r.cfg()
	p, ok := cfg.Providers[provider]
	if !ok {
		return oauthprovider.Config{}
	}

	redirect := p.RedirectURI
	if redirect == "" {
		redirect = callbackURL(cfg.Broker.RedirectBaseURL, provider)
	}

	return oauthprovider.Config{
		ClientID:     p.ClientID,
		ClientSecret: r.secrets.Get(p.ClientSecretEnvFor(provider)),
		Scopes:       append([]string(nil), p.Scopes...),
		RedirectURI:  redirect,
	}
}

// APIKey returns the long-lived API key configured for provider, or "".
func (r *ProviderConfigResolver) APIKey(provider string) string {
	p, ok := r.cfg().Providers[provider]
	if !ok || p.APIKeyEnv == "" {
		return ""
	}
	return r.secrets.Get(p.APIKeyEnv)
}

// Secret returns the raw value of a vault key.
func (r *ProviderConfigResolver) Secret(key string) string {
	return r.secrets.Get(key)
}

// Redact masks every known secret value in s.
func (r *ProviderConfigResolver) Redact(s string) string {
	return r.secrets.RedactString(s)
}

func callbackURL(base, provider string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + fmt.Sprintf(callbackPath, url.PathEscape(provider))
}
