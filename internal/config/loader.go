package config

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "opsboard.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	// Provider entries replace defaults wholesale in yaml.v3, so keep the
	// defaults aside and refill empty fields afterwards.
	defaults := cfg.Providers
	cfg.Providers = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.Providers = mergeProviders(defaults, cfg.Providers)
	return nil
}

func mergeProviders(defaults, loaded map[string]Provider) map[string]Provider {
	out := make(map[string]Provider, len(defaults)+len(loaded))
	for name, p := range defaults {
		out[name] = p
	}
	for name, p := range loaded {
		d := out[name]
		if len(p.Scopes) == 0 {
			p.Scopes = d.Scopes
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = d.APIKeyEnv
		}
		out[name] = p
	}
	return out
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "OPSBOARD_PORT")
	setString(&cfg.Server.CORSOrigin, "OPSBOARD_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "OPSBOARD_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "OPSBOARD_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "OPSBOARD_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "OPSBOARD_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "OPSBOARD_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "OPSBOARD_LOG_LEVEL")
	setString(&cfg.Logging.Service, "OPSBOARD_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "OPSBOARD_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "OPSBOARD_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "OPSBOARD_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "OPSBOARD_RATE_RPS")
	setInt(&cfg.Rate.Burst, "OPSBOARD_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "OPSBOARD_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "OPSBOARD_RATE_MAX_IDLE_TIME")

	// OpenTelemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "OTEL_EXPORTER_OTLP_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")

	// Broker
	setString(&cfg.Broker.RedirectBaseURL, "OPSBOARD_REDIRECT_BASE_URL")
	setDuration(&cfg.Broker.PendingTTL, "OPSBOARD_PENDING_TTL")
	setDuration(&cfg.Broker.HTTPTimeout, "OPSBOARD_HTTP_TIMEOUT")
	setDuration(&cfg.Broker.ValidationTimeout, "OPSBOARD_VALIDATION_TIMEOUT")
	setDuration(&cfg.Broker.ProbeTimeout, "OPSBOARD_PROBE_TIMEOUT")
	setDuration(&cfg.Broker.ValidationCacheTTL, "OPSBOARD_VALIDATION_CACHE_TTL")

	// Providers: OPSBOARD_<NAME>_CLIENT_ID, _SCOPES, _REDIRECT_URI
	for name, p := range cfg.Providers {
		prefix := envPrefix(name)
		setString(&p.ClientID, prefix+"_CLIENT_ID")
		setString(&p.RedirectURI, prefix+"_REDIRECT_URI")
		setList(&p.Scopes, prefix+"_SCOPES")
		cfg.Providers[name] = p
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Broker.EncryptionSeedEnv == "" {
		return errors.New("broker.encryption_seed_env is required")
	}
	if cfg.Broker.PendingTTL <= 0 {
		return errors.New("broker.pending_ttl must be > 0")
	}
	if cfg.Broker.HTTPTimeout <= 0 {
		return errors.New("broker.http_timeout must be > 0")
	}
	if base := cfg.Broker.RedirectBaseURL; base != "" {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("broker.redirect_base_url %q must be an absolute URL", base)
		}
	}
	for _, p := range cfg.Probes {
		if p.Name == "" || p.Command == "" {
			return errors.New("probes: name and command are required")
		}
	}
	return validateIntegrationNames(cfg)
}

// validateIntegrationNames rejects a name used by more than one of
// providers, bearer and probes, since each name keys one status entry.
func validateIntegrationNames(cfg *Config) error {
	seen := make(map[string]string)
	claim := func(name, section string) error {
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("integration %q is defined in both %s and %s", name, prev, section)
		}
		seen[name] = section
		return nil
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.Providers)) {
		if err := claim(name, "providers"); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(cfg.Bearer)) {
		if err := claim(name, "bearer"); err != nil {
			return err
		}
	}
	for _, p := range cfg.Probes {
		if err := claim(p.Name, "probes"); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList reads a comma-separated list; blank entries are dropped.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
