package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	cfotel "github.com/Strob0t/opsboard/internal/adapter/otel"
	"github.com/Strob0t/opsboard/internal/domain/integration"
	"github.com/Strob0t/opsboard/internal/port/cache"
	"github.com/Strob0t/opsboard/internal/port/probe"
)

const (
	defaultValidationTimeout = 4 * time.Second
	defaultProbeTimeout      = 5 * time.Second
)

// Check kinds, recorded on spans.
const (
	checkBroker = "oauth"
	checkAPIKey = "api_key"
	checkBearer = "bearer"
	checkProbe  = "probe"
)

// APIKeyValidator is implemented by providers that accept a long-lived API
// key as an alternative to OAuth. ValidateAPIKey performs a lightweight
// read-only call and returns the remote identity on success.
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, apiKey string) (string, error)
}

// StatusAggregator blends broker state, API-key validation, bearer-token
// presence and external tool probes into one report.
type StatusAggregator struct {
	broker  *CredentialBroker
	configs *ProviderConfigResolver
	probes  probe.Runner
	cache   cache.Cache
	metrics *cfotel.Metrics
	now     func() time.Time
}

// NewStatusAggregator creates an aggregator. A nil runner disables tool
// probes.
func NewStatusAggregator(broker *CredentialBroker, configs *ProviderConfigResolver, probes probe.Runner) *StatusAggregator {
	return &StatusAggregator{broker: broker, configs: configs, probes: probes, now: time.Now}
}

// SetMetrics sets the metric instruments.
func (a *StatusAggregator) SetMetrics(m *cfotel.Metrics) { a.metrics = m }

// SetCache sets the cache for successful API-key validations.
func (a *StatusAggregator) SetCache(c cache.Cache) { a.cache = c }

type statusCheck struct {
	name string
	kind string
	run  func(ctx context.Context) integration.ProviderStatus
}

// Report runs every check concurrently. A failing or panicking check
// becomes that integration's error entry and never aborts the report.
func (a *StatusAggregator) Report(ctx context.Context) integration.Report {
	checks := a.checks()
	results := make([]integration.ProviderStatus, len(checks))

	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = a.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	report := integration.Report{
		GeneratedAt: a.now().UTC(),
		Providers:   make(map[string]integration.ProviderStatus, len(results)),
	}
	for _, st := range results {
		report.Providers[st.Provider] = st
	}
	return report
}

func (a *StatusAggregator) checks() []statusCheck {
	cfg := a.configs.Config()
	var checks []statusCheck

	for _, name := range a.broker.Providers() {
		p, _ := a.broker.Provider(name)
		if v, ok := p.(APIKeyValidator); ok {
			if key := a.configs.APIKey(name); key != "" {
				checks = append(checks, statusCheck{name: name, kind: checkAPIKey, run: func(ctx context.Context) integration.ProviderStatus {
					return a.apiKeyStatus(ctx, name, v, key)
				}})
				continue
			}
		}
		checks = append(checks, statusCheck{name: name, kind: checkBroker, run: func(ctx context.Context) integration.ProviderStatus {
			return a.broker.Status(ctx, name)
		}})
	}

	for name, env := range cfg.Bearer {
		if _, taken := a.broker.Provider(name); taken {
			continue
		}
		checks = append(checks, statusCheck{name: name, kind: checkBearer, run: func(context.Context) integration.ProviderStatus {
			return a.bearerStatus(name, env)
		}})
	}

	if a.probes != nil {
		for _, p := range cfg.Probes {
			if _, taken := a.broker.Provider(p.Name); taken {
				slog.Warn("probe shadows a provider, skipped", "probe", p.Name)
				continue
			}
			spec := probe.Spec{Name: p.Name, Command: p.Command, Args: p.Args}
			checks = append(checks, statusCheck{name: p.Name, kind: checkProbe, run: func(ctx context.Context) integration.ProviderStatus {
				return a.probeStatus(ctx, spec)
			}})
		}
	}
	return checks
}

func (a *StatusAggregator) run(ctx context.Context, c statusCheck) (st integration.ProviderStatus) {
	ctx, span := cfotel.StartStatusCheckSpan(ctx, c.name, c.kind)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "status check panicked", "integration", c.name, "kind", c.kind, "panic", r)
			st = a.errorStatus(c.name, "check failed")
		}
		if a.metrics != nil {
			a.metrics.StatusChecks.Add(ctx, 1, metric.WithAttributes(
				attribute.String("provider", c.name),
				attribute.String("status", st.Status),
			))
		}
	}()

	st = c.run(ctx)
	st.Provider = c.name
	return st
}

func (a *StatusAggregator) apiKeyStatus(ctx context.Context, name string, v APIKeyValidator, key string) integration.ProviderStatus {
	timeout := a.configs.Config().Broker.ValidationTimeout
	if timeout <= 0 {
		timeout = defaultValidationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st := integration.ProviderStatus{Provider: name, Configured: true, CheckedAt: a.now().UTC()}
	cacheKey := validationCacheKey(name, key)
	if a.cachedValidation(ctx, cacheKey) {
		st.Connected = true
		st.Status = integration.StatusConnected
		st.Detail = "validated with api key"
		return st
	}

	identity, err := v.ValidateAPIKey(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "api key validation failed", "provider", name, "error", a.configs.Redact(err.Error()))
		st.Status = integration.StatusError
		st.Detail = "api key validation failed"
		return st
	}
	a.cacheValidation(ctx, cacheKey, identity)
	st.Connected = true
	st.Status = integration.StatusConnected
	st.Detail = "validated with api key"
	return st
}

func (a *StatusAggregator) cachedValidation(ctx context.Context, key string) bool {
	if a.cache == nil {
		return false
	}
	_, found, err := a.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "validation cache get failed", "error", err)
		return false
	}
	return found
}

func (a *StatusAggregator) cacheValidation(ctx context.Context, key, identity string) {
	ttl := a.configs.Config().Broker.ValidationCacheTTL
	if a.cache == nil || ttl <= 0 {
		return
	}
	if err := a.cache.Set(ctx, key, []byte(identity), ttl); err != nil {
		slog.WarnContext(ctx, "validation cache set failed", "error", err)
	}
}

// validationCacheKey never embeds the key itself, only a digest, so a
// rotated key misses the cache immediately.
func validationCacheKey(provider, apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "apikey." + provider + "." + hex.EncodeToString(sum[:8])
}

func (a *StatusAggregator) bearerStatus(name, env string) integration.ProviderStatus {
	present := a.configs.Secret(env) != ""
	st := integration.ProviderStatus{
		Provider:   name,
		Configured: present,
		Connected:  present,
		Status:     integration.StatusNotConfigured,
		CheckedAt:  a.now().UTC(),
	}
	if present {
		st.Status = integration.StatusConnected
	}
	return st
}

func (a *StatusAggregator) probeStatus(ctx context.Context, spec probe.Spec) integration.ProviderStatus {
	timeout := a.configs.Config().Broker.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := a.probes.Run(ctx, spec)
	if err != nil {
		return a.errorStatus(spec.Name, scrubProbeOutput(err.Error(), a.configs.Redact))
	}

	st := integration.ProviderStatus{
		Provider:   spec.Name,
		Configured: true,
		Connected:  res.ExitCode == 0,
		Status:     integration.StatusDisconnected,
		CheckedAt:  a.now().UTC(),
		Detail:     scrubProbeOutput(joinOutput(res.Stdout, res.Stderr), a.configs.Redact),
	}
	if st.Connected {
		st.Status = integration.StatusConnected
	}
	return st
}

func (a *StatusAggregator) errorStatus(name, detail string) integration.ProviderStatus {
	return integration.ProviderStatus{
		Provider:  name,
		Status:    integration.StatusError,
		CheckedAt: a.now().UTC(),
		Detail:    detail,
	}
}

func joinOutput(stdout, stderr string) string {
	stdout, stderr = strings.TrimSpace(stdout), strings.TrimSpace(stderr)
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	}
	return fmt.Sprintf("%s\n%s", stdout, stderr)
}

// scrubProbeOutput drops every line mentioning "token" in any case, then
// masks any known secret value left in the remaining text.
func scrubProbeOutput(out string, redact func(string) string) string {
	lines := strings.Split(out, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), "token") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(redact(strings.Join(kept, "\n")))
}
