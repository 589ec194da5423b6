package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/opsboard/internal/config"
	"github.com/Strob0t/opsboard/internal/domain/integration"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
	"github.com/Strob0t/opsboard/internal/port/probe"
)

// fakeRunner returns canned probe results keyed by probe name.
type fakeRunner struct {
	mu      sync.Mutex
	results map[string]probe.Result
	errs    map[string]error
	panics  map[string]bool
	delay   time.Duration
	calls   int
}

func (r *fakeRunner) Run(ctx context.Context, spec probe.Spec) (probe.Result, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.panics[spec.Name] {
		panic("probe exploded")
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return probe.Result{}, ctx.Err()
		}
	}
	if err := r.errs[spec.Name]; err != nil {
		return probe.Result{}, err
	}
	return r.results[spec.Name], nil
}

// keyProvider is a fakeProvider that also validates API keys.
type keyProvider struct {
	fakeProvider
	validKey string
	gotKey   chan string
}

func (p *keyProvider) ValidateAPIKey(_ context.Context, key string) (string, error) {
	if p.gotKey != nil {
		p.gotKey <- key
	}
	if key != p.validKey {
		return "", errors.New("rejected key " + key)
	}
	return "viewer-1", nil
}

func newAggregator(t *testing.T, runner probe.Runner, extra ...*keyProvider) (*StatusAggregator, *brokerFixture) {
	t.Helper()
	var providers []oauthprovider.Provider
	for _, p := range extra {
		providers = append(providers, p)
	}
	f := newBrokerFixture(t, providers...)
	agg := NewStatusAggregator(f.broker, f.resolver, runner)
	agg.now = f.clock.Now
	return agg, f
}

func TestReport_BrokerAndBearerEntries(t *testing.T) {
	agg, f := newAggregator(t, nil)
	f.vault["GITHUB_TOKEN"] = "ghp_abcdef"
	f.connect(t)

	report := agg.Report(context.Background())
	assert.Equal(t, f.clock.Now(), report.GeneratedAt)

	fake := report.Providers["fake"]
	assert.True(t, fake.Connected)
	assert.True(t, fake.RefreshSupported)

	assert.Equal(t, integration.StatusNotConfigured, report.Providers["bare"].Status)

	gh := report.Providers["github"]
	assert.True(t, gh.Configured)
	assert.True(t, gh.Connected)
	assert.Equal(t, integration.StatusConnected, gh.Status)
	assert.False(t, gh.RefreshSupported)

	discord := report.Providers["discord"]
	assert.False(t, discord.Configured)
	assert.False(t, discord.Connected)
	assert.Equal(t, integration.StatusNotConfigured, discord.Status)
}

func TestReport_APIKeyPreferredOverOAuth(t *testing.T) {
	linear := &keyProvider{fakeProvider: fakeProvider{name: "linear"}, validKey: "lin_api_good", gotKey: make(chan string, 1)}
	agg, f := newAggregator(t, nil, linear)
	f.cfg.Providers["linear"] = config.Provider{Scopes: []string{"read"}, APIKeyEnv: "LINEAR_API_KEY"}

	// No key: falls back to broker status (unconfigured OAuth).
	st := agg.Report(context.Background()).Providers["linear"]
	assert.Equal(t, integration.StatusNotConfigured, st.Status)
	assert.Empty(t, linear.gotKey)

	f.vault["LINEAR_API_KEY"] = "lin_api_good"
	st = agg.Report(context.Background()).Providers["linear"]
	assert.Equal(t, "lin_api_good", <-linear.gotKey)
	assert.True(t, st.Configured)
	assert.True(t, st.Connected)
	assert.Equal(t, integration.StatusConnected, st.Status)

	f.vault["LINEAR_API_KEY"] = "lin_api_bad"
	st = agg.Report(context.Background()).Providers["linear"]
	<-linear.gotKey
	assert.False(t, st.Connected)
	assert.Equal(t, integration.StatusError, st.Status)
	assert.NotContains(t, st.Detail, "lin_api_bad")
}

// mapCache is an in-memory cache.Cache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func TestReport_APIKeyValidationCached(t *testing.T) {
	linear := &keyProvider{fakeProvider: fakeProvider{name: "linear"}, validKey: "lin_api_good", gotKey: make(chan string, 1)}
	agg, f := newAggregator(t, nil, linear)
	c := &mapCache{}
	agg.SetCache(c)
	f.cfg.Broker.ValidationCacheTTL = time.Minute
	f.cfg.Providers["linear"] = config.Provider{Scopes: []string{"read"}, APIKeyEnv: "LINEAR_API_KEY"}
	f.vault["LINEAR_API_KEY"] = "lin_api_good"

	require.True(t, agg.Report(context.Background()).Providers["linear"].Connected)
	<-linear.gotKey
	require.Len(t, c.data, 1)
	for k, v := range c.data {
		assert.NotContains(t, k, "lin_api_good")
		assert.Equal(t, "viewer-1", string(v))
	}

	st := agg.Report(context.Background()).Providers["linear"]
	assert.True(t, st.Connected)
	assert.Empty(t, linear.gotKey, "cached validation must not call the provider")

	// A rotated key has a different digest and is validated live.
	f.vault["LINEAR_API_KEY"] = "lin_api_rotated"
	st = agg.Report(context.Background()).Providers["linear"]
	assert.Equal(t, "lin_api_rotated", <-linear.gotKey)
	assert.Equal(t, integration.StatusError, st.Status)
}

func TestReport_APIKeyCacheDisabledByZeroTTL(t *testing.T) {
	linear := &keyProvider{fakeProvider: fakeProvider{name: "linear"}, validKey: "lin_api_good", gotKey: make(chan string, 2)}
	agg, f := newAggregator(t, nil, linear)
	c := &mapCache{}
	agg.SetCache(c)
	f.cfg.Broker.ValidationCacheTTL = 0
	f.cfg.Providers["linear"] = config.Provider{Scopes: []string{"read"}, APIKeyEnv: "LINEAR_API_KEY"}
	f.vault["LINEAR_API_KEY"] = "lin_api_good"

	agg.Report(context.Background())
	agg.Report(context.Background())
	assert.Len(t, linear.gotKey, 2)
	assert.Empty(t, c.data)
}

func TestReport_ProbeOutputScrubbed(t *testing.T) {
	runner := &fakeRunner{results: map[string]probe.Result{
		"gh": {
			ExitCode: 0,
			Stdout:   "github.com\n  ✓ Logged in to github.com account octo (keyring)\n  - Token: abc123\n  - Token scopes: 'repo'",
			Stderr:   "using secret ghp_abcdef for diagnostics",
		},
	}}
	agg, f := newAggregator(t, runner)
	f.vault["GITHUB_TOKEN"] = "ghp_abcdef"
	f.cfg.Probes = []config.Probe{{Name: "gh", Command: "gh", Args: []string{"auth", "status"}}}

	st := agg.Report(context.Background()).Providers["gh"]
	assert.True(t, st.Connected)
	assert.Equal(t, integration.StatusConnected, st.Status)
	assert.NotContains(t, st.Detail, "Token: abc123")
	assert.NotContains(t, st.Detail, "abc123")
	assert.NotContains(t, strings.ToLower(st.Detail), "token")
	assert.NotContains(t, st.Detail, "ghp_abcdef")
	assert.Contains(t, st.Detail, "Logged in to github.com")
}

func TestReport_ProbeExitCodeAndErrors(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]probe.Result{"gh": {ExitCode: 1, Stderr: "You are not logged into any GitHub hosts."}},
		errs:    map[string]error{"kubectl": errors.New(`exec: "kubectl": executable file not found in $PATH`)},
		panics:  map[string]bool{"boom": true},
	}
	agg, f := newAggregator(t, runner)
	f.cfg.Probes = []config.Probe{
		{Name: "gh", Command: "gh"},
		{Name: "kubectl", Command: "kubectl"},
		{Name: "boom", Command: "boom"},
	}

	report := agg.Report(context.Background())

	gh := report.Providers["gh"]
	assert.False(t, gh.Connected)
	assert.Equal(t, integration.StatusDisconnected, gh.Status)
	assert.Equal(t, "You are not logged into any GitHub hosts.", gh.Detail)

	kubectl := report.Providers["kubectl"]
	assert.Equal(t, integration.StatusError, kubectl.Status)
	assert.Contains(t, kubectl.Detail, "executable file not found")

	boom := report.Providers["boom"]
	assert.Equal(t, integration.StatusError, boom.Status)
	assert.Equal(t, "boom", boom.Provider)

	// The other entries are still present.
	assert.Contains(t, report.Providers, "fake")
	assert.Contains(t, report.Providers, "github")
}

func TestReport_ProbeNamedLikeProviderIsSkipped(t *testing.T) {
	runner := &fakeRunner{results: map[string]probe.Result{"fake": {ExitCode: 1, Stderr: "not logged in"}}}
	agg, f := newAggregator(t, runner)
	f.connect(t)
	f.cfg.Probes = []config.Probe{{Name: "fake", Command: "fake-cli"}}

	for range 5 {
		st := agg.Report(context.Background()).Providers["fake"]
		assert.True(t, st.Connected, "provider entry must not be replaced by the probe")
		assert.True(t, st.RefreshSupported)
	}
}

func TestReport_ChecksRunConcurrently(t *testing.T) {
	runner := &fakeRunner{delay: 200 * time.Millisecond, results: map[string]probe.Result{}}
	agg, f := newAggregator(t, runner)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		f.cfg.Probes = append(f.cfg.Probes, config.Probe{Name: name, Command: name})
	}

	started := time.Now()
	report := agg.Report(context.Background())
	elapsed := time.Since(started)

	require.Equal(t, 5, runner.calls)
	assert.Less(t, elapsed, 800*time.Millisecond, "probes should not run sequentially")
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		assert.True(t, report.Providers[name].Connected)
	}
}

func TestReport_ProbeTimeout(t *testing.T) {
	runner := &fakeRunner{delay: 5 * time.Second, results: map[string]probe.Result{}}
	agg, f := newAggregator(t, runner)
	f.cfg.Broker.ProbeTimeout = 50 * time.Millisecond
	f.cfg.Probes = []config.Probe{{Name: "slowpoke", Command: "sleep"}}

	st := agg.Report(context.Background()).Providers["slowpoke"]
	assert.Equal(t, integration.StatusError, st.Status)
	assert.False(t, st.Connected)
}

func TestScrubProbeOutput(t *testing.T) {
	redact := func(s string) string { return strings.ReplaceAll(s, "hunter2", "****") }
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"drops token lines", "ok\nToken: abc123\ndone", "ok\ndone"},
		{"case insensitive", "ACCESS_TOKEN=x\nfine", "fine"},
		{"masks secrets", "password hunter2 used", "password **** used"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scrubProbeOutput(tt.in, redact))
		})
	}
}
