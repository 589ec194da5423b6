package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Broker.PendingTTL != 10*time.Minute {
		t.Errorf("expected pending ttl 10m, got %v", cfg.Broker.PendingTTL)
	}
	if cfg.Broker.HTTPTimeout != 15*time.Second {
		t.Errorf("expected http timeout 15s, got %v", cfg.Broker.HTTPTimeout)
	}
	if cfg.Broker.ValidationTimeout != 4*time.Second {
		t.Errorf("expected validation timeout 4s, got %v", cfg.Broker.ValidationTimeout)
	}
	if got := cfg.ProviderNames(); !slices.Equal(got, []string{"linear", "slack"}) {
		t.Errorf("expected providers [linear slack], got %v", got)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("expected NATS disabled by default, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
logging:
  level: "debug"
broker:
  redirect_base_url: "https://ops.example.com"
providers:
  slack:
    client_id: "123.456"
  jira:
    client_id: "jira-client"
    scopes: ["read:jira-work"]
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Broker.RedirectBaseURL != "https://ops.example.com" {
		t.Errorf("expected redirect base, got %s", cfg.Broker.RedirectBaseURL)
	}
	slack := cfg.Providers["slack"]
	if slack.ClientID != "123.456" {
		t.Errorf("expected slack client id, got %s", slack.ClientID)
	}
	// Scopes come from defaults when YAML omits them.
	if len(slack.Scopes) == 0 {
		t.Error("expected default slack scopes to survive a partial override")
	}
	if cfg.Providers["linear"].APIKeyEnv != "LINEAR_API_KEY" {
		t.Errorf("expected untouched linear defaults, got %+v", cfg.Providers["linear"])
	}
	if cfg.Providers["jira"].ClientID != "jira-client" {
		t.Errorf("expected extra provider to load, got %+v", cfg.Providers["jira"])
	}
	// Unchanged fields keep defaults
	if cfg.Broker.PendingTTL != 10*time.Minute {
		t.Errorf("expected default pending ttl, got %v", cfg.Broker.PendingTTL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("OPSBOARD_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("OPSBOARD_PG_MAX_CONNS", "25")
	t.Setenv("OPSBOARD_LOG_LEVEL", "warn")
	t.Setenv("OPSBOARD_BREAKER_TIMEOUT", "1m")
	t.Setenv("OPSBOARD_SLACK_CLIENT_ID", "env-client")
	t.Setenv("OPSBOARD_SLACK_SCOPES", "chat:write, users:read,,")
	t.Setenv("OPSBOARD_LINEAR_REDIRECT_URI", "https://ops.example.com/cb")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("expected max_conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Providers["slack"].ClientID != "env-client" {
		t.Errorf("expected slack client id from env, got %s", cfg.Providers["slack"].ClientID)
	}
	if got := cfg.Providers["slack"].Scopes; !slices.Equal(got, []string{"chat:write", "users:read"}) {
		t.Errorf("expected trimmed scopes, got %v", got)
	}
	if cfg.Providers["linear"].RedirectURI != "https://ops.example.com/cb" {
		t.Errorf("expected linear redirect from env, got %s", cfg.Providers["linear"].RedirectURI)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	cfg := Defaults()

	t.Setenv("OPSBOARD_PG_MAX_CONNS", "not-a-number")
	t.Setenv("OPSBOARD_PENDING_TTL", "forever")

	loadEnv(&cfg)

	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("invalid int should keep default, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Broker.PendingTTL != 10*time.Minute {
		t.Errorf("invalid duration should keep default, got %v", cfg.Broker.PendingTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "empty dsn", mutate: func(c *Config) { c.Postgres.DSN = "" }, wantErr: true},
		{name: "zero breaker", mutate: func(c *Config) { c.Breaker.MaxFailures = 0 }, wantErr: true},
		{name: "no seed env", mutate: func(c *Config) { c.Broker.EncryptionSeedEnv = "" }, wantErr: true},
		{name: "zero pending ttl", mutate: func(c *Config) { c.Broker.PendingTTL = 0 }, wantErr: true},
		{name: "relative redirect base", mutate: func(c *Config) { c.Broker.RedirectBaseURL = "/callback" }, wantErr: true},
		{name: "absolute redirect base", mutate: func(c *Config) { c.Broker.RedirectBaseURL = "https://ops.example.com" }},
		{name: "probe without command", mutate: func(c *Config) { c.Probes = []Probe{{Name: "gh"}} }, wantErr: true},
		{name: "probe shadows bearer", mutate: func(c *Config) {
			c.Probes = append(c.Probes, Probe{Name: "github", Command: "gh"})
		}, wantErr: true},
		{name: "bearer shadows provider", mutate: func(c *Config) { c.Bearer["slack"] = "SLACK_BOT_TOKEN" }, wantErr: true},
		{name: "duplicate probe", mutate: func(c *Config) {
			c.Probes = append(c.Probes, Probe{Name: "gh", Command: "gh", Args: []string{"api", "user"}})
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSecretKeys(t *testing.T) {
	cfg := Defaults()
	keys := cfg.SecretKeys()

	for _, want := range []string{
		"OPSBOARD_ENCRYPTION_SEED",
		"OPSBOARD_SLACK_CLIENT_SECRET",
		"OPSBOARD_LINEAR_CLIENT_SECRET",
		"LINEAR_API_KEY",
		"GITHUB_TOKEN",
		"DISCORD_BOT_TOKEN",
		"OPSBOARD_SLACK_WEBHOOK_URL",
		"OPSBOARD_DISCORD_WEBHOOK_URL",
	} {
		if !slices.Contains(keys, want) {
			t.Errorf("expected %s in secret keys %v", want, keys)
		}
	}
	if !slices.IsSorted(keys) {
		t.Errorf("expected sorted keys, got %v", keys)
	}
}

func TestClientSecretEnvFor(t *testing.T) {
	if got := (Provider{}).ClientSecretEnvFor("my-crm"); got != "OPSBOARD_MY_CRM_CLIENT_SECRET" {
		t.Errorf("unexpected derived env name %s", got)
	}
	if got := (Provider{ClientSecretEnv: "CRM_SECRET"}).ClientSecretEnvFor("my-crm"); got != "CRM_SECRET" {
		t.Errorf("explicit env name should win, got %s", got)
	}
}
