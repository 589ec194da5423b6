package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/opsboard/internal/adapter/discord"
	cfnats "github.com/Strob0t/opsboard/internal/adapter/nats"
	"github.com/Strob0t/opsboard/internal/adapter/natskv"
	cfotel "github.com/Strob0t/opsboard/internal/adapter/otel"
	"github.com/Strob0t/opsboard/internal/adapter/postgres"
	"github.com/Strob0t/opsboard/internal/adapter/ristretto"
	"github.com/Strob0t/opsboard/internal/adapter/shellprobe"
	"github.com/Strob0t/opsboard/internal/adapter/slack"
	"github.com/Strob0t/opsboard/internal/adapter/tiered"
	"github.com/Strob0t/opsboard/internal/config"
	"github.com/Strob0t/opsboard/internal/domain/secret"
	"github.com/Strob0t/opsboard/internal/port/cache"
	"github.com/Strob0t/opsboard/internal/port/messagequeue"
	"github.com/Strob0t/opsboard/internal/port/notifier"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
	"github.com/Strob0t/opsboard/internal/secrets"
	"github.com/Strob0t/opsboard/internal/service"
)

// validationCacheBytes bounds the in-process API-key validation cache.
const validationCacheBytes = 1 << 20

// app holds the wired services shared by the server and admin commands.
type app struct {
	cfg     *config.Holder
	vault   *secrets.Vault
	pool    *pgxpool.Pool
	store   *postgres.Store
	events  messagequeue.Publisher
	broker  *service.CredentialBroker
	status  *service.StatusAggregator
	closers []func()
}

// newApp connects infrastructure and wires the broker. Close releases
// everything newApp opened, in reverse order.
func newApp(ctx context.Context, cfgPath string, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: config.NewHolder(cfg, cfgPath), events: messagequeue.Nop{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// --- Secrets ---

	a.vault, err = secrets.NewVault(secrets.EnvLoader(cfg.SecretKeys()...))
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	seed := a.vault.Get(cfg.Broker.EncryptionSeedEnv)
	if seed == "" {
		slog.Warn("ENCRYPTION SEED NOT SET: using the public development seed, stored secrets are NOT protected",
			"env", cfg.Broker.EncryptionSeedEnv)
		seed = config.DevEncryptionSeed
	}
	cipher, err := secret.NewCipher(secret.DeriveKey(seed))
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}

	// --- Infrastructure ---

	a.pool, err = postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.closers = append(a.closers, a.pool.Close)
	a.store = postgres.NewStore(a.pool)

	var remote cache.Cache
	if cfg.NATS.URL != "" {
		pub, err := cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.events = pub
		a.closers = append(a.closers, func() { _ = pub.Close() })

		if ttl := cfg.Broker.ValidationCacheTTL; ttl > 0 {
			kv, err := pub.ValidationBucket(ctx, ttl)
			if err != nil {
				return nil, fmt.Errorf("nats kv: %w", err)
			}
			remote = natskv.New(kv)
		}
	} else {
		slog.Info("nats disabled: connection events are not published")
	}

	local, err := ristretto.New(validationCacheBytes)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.closers = append(a.closers, local.Close)
	var validations cache.Cache = local
	if remote != nil {
		validations = tiered.New(local, remote, cfg.Broker.ValidationCacheTTL)
	}

	metrics, err := cfotel.NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---

	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	resolver := service.NewProviderConfigResolver(a.cfg.Get, a.vault)

	alerts := service.NewNotificationService(
		[]notifier.Notifier{
			slack.NewNotifier(func() string { return a.vault.Get(a.cfg.Get().Alerts.SlackWebhookEnv) }),
			discord.NewNotifier(func() string { return a.vault.Get(a.cfg.Get().Alerts.DiscordWebhookEnv) }),
		},
		cfg.Alerts.Events,
	)

	a.broker = service.NewCredentialBroker(a.store, cipher, resolver, providers...)
	a.broker.SetEvents(a.events)
	a.broker.SetNotifier(alerts)
	a.broker.SetMetrics(metrics)

	a.status = service.NewStatusAggregator(a.broker, resolver, shellprobe.New())
	a.status.SetMetrics(metrics)
	a.status.SetCache(validations)

	slog.Info("credential broker ready", "providers", a.broker.Providers())
	return a, nil
}

// buildProviders instantiates every registered provider adapter. Providers
// missing from config are still served and report not_configured.
func buildProviders(cfg *config.Config) ([]oauthprovider.Provider, error) {
	names := oauthprovider.Available()
	providers := make([]oauthprovider.Provider, 0, len(names))
	for _, name := range names {
		pc := cfg.Providers[name]
		p, err := oauthprovider.New(name, oauthprovider.Options{
			Timeout:            cfg.Broker.HTTPTimeout,
			AuthURL:            pc.AuthURL,
			TokenURL:           pc.TokenURL,
			APIURL:             pc.APIURL,
			BreakerMaxFailures: cfg.Breaker.MaxFailures,
			BreakerTimeout:     cfg.Breaker.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
