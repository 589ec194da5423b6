package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/opsboard/internal/adapter/otel"
	"github.com/Strob0t/opsboard/internal/domain"
	"github.com/Strob0t/opsboard/internal/domain/connection"
	"github.com/Strob0t/opsboard/internal/domain/integration"
	"github.com/Strob0t/opsboard/internal/domain/oauth"
	"github.com/Strob0t/opsboard/internal/domain/secret"
	"github.com/Strob0t/opsboard/internal/logger"
	"github.com/Strob0t/opsboard/internal/port/database"
	"github.com/Strob0t/opsboard/internal/port/messagequeue"
	"github.com/Strob0t/opsboard/internal/port/notifier"
	"github.com/Strob0t/opsboard/internal/port/oauthprovider"
)

const defaultPendingTTL = 10 * time.Minute

// StartResult is returned when a flow begins.
type StartResult struct {
	Provider     string `json:"provider"`
	AuthorizeURL string `json:"authorizeUrl"`
	State        string `json:"state"`
	ExpiresAt    string `json:"expiresAt"`
}

// CallbackParams are the query parameters of a provider redirect.
type CallbackParams struct {
	State string
	Code  string
	Error string
}

// CompleteResult is returned when a callback connects an account.
type CompleteResult struct {
	Provider   string `json:"provider"`
	Status     string `json:"status"`
	AccountRef string `json:"accountRef,omitempty"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
}

// RefreshResult reports the outcome of a refresh. It is never an error:
// Refreshed false with a Reason covers every failure.
type RefreshResult struct {
	Provider   string `json:"provider"`
	Refreshed  bool   `json:"refreshed"`
	AccountRef string `json:"accountRef,omitempty"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// CredentialBroker runs OAuth2 authorization-code flows with PKCE and keeps
// the resulting tokens in the encrypted secret ledger.
type CredentialBroker struct {
	db        database.Store
	ledger    *ConnectionLedger
	secrets   *SecretStore
	configs   *ProviderConfigResolver
	providers map[string]oauthprovider.Provider
	now       func() time.Time

	events   messagequeue.Publisher
	notifier *NotificationService
	metrics  *cfotel.Metrics
}

// NewCredentialBroker creates a broker serving the given providers.
func NewCredentialBroker(
	s database.Store,
	cipher *secret.Cipher,
	configs *ProviderConfigResolver,
	providers ...oauthprovider.Provider,
) *CredentialBroker {
	b := &CredentialBroker{
		db:        s,
		secrets:   NewSecretStore(s, cipher),
		configs:   configs,
		providers: make(map[string]oauthprovider.Provider, len(providers)),
		now:       time.Now,
		events:    messagequeue.Nop{},
	}
	b.ledger = &ConnectionLedger{db: s, now: func() time.Time { return b.now() }}
	for _, p := range providers {
		b.providers[p.Name()] = p
	}
	return b
}

// SetEvents sets the publisher for connection lifecycle events.
func (b *CredentialBroker) SetEvents(p messagequeue.Publisher) { b.events = p }

// SetNotifier sets the operator alert dispatcher.
func (b *CredentialBroker) SetNotifier(n *NotificationService) { b.notifier = n }

// SetMetrics sets the metric instruments.
func (b *CredentialBroker) SetMetrics(m *cfotel.Metrics) { b.metrics = m }

// Providers returns the supported provider names, sorted.
func (b *CredentialBroker) Providers() []string {
	names := make([]string, 0, len(b.providers))
	for name := range b.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Provider returns the adapter registered under name.
func (b *CredentialBroker) Provider(name string) (oauthprovider.Provider, bool) {
	p, ok := b.providers[name]
	return p, ok
}

// resolve fails closed: an unknown provider or any missing config field
// stops the flow before anything is written.
func (b *CredentialBroker) resolve(provider string) (oauthprovider.Provider, oauthprovider.Config, error) {
	p, ok := b.providers[provider]
	if !ok {
		return nil, oauthprovider.Config{}, configError(oauth.CodeUnsupportedProvider)
	}
	cfg := b.configs.Resolve(provider)
	if !cfg.Configured() {
		return nil, oauthprovider.Config{}, configError(oauth.CodeProviderNotConfigured)
	}
	return p, cfg, nil
}

func (b *CredentialBroker) pendingTTL() time.Duration {
	if ttl := b.configs.Config().Broker.PendingTTL; ttl > 0 {
		return ttl
	}
	return defaultPendingTTL
}

// Start creates a pending connection and its PKCE state record, and returns
// the URL the user must visit.
func (b *CredentialBroker) Start(ctx context.Context, provider string) (*StartResult, error) {
	ctx, span := cfotel.StartBrokerSpan(ctx, "start", provider)
	defer span.End()

	p, cfg, err := b.resolve(provider)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithProvider(ctx, provider)

	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return nil, internalError(err)
	}
	state, err := oauth.GenerateState()
	if err != nil {
		return nil, internalError(err)
	}

	var conn *connection.Connection
	err = b.db.InTx(ctx, func(tx database.Store) error {
		c, err := b.ledger.WithStore(tx).CreatePending(ctx, provider, state, cfg.Scopes, b.pendingTTL())
		if err != nil {
			return err
		}
		conn = c
		_, err = b.secrets.WithStore(tx).Put(ctx, provider, secret.StateName(provider, state), secret.StatePayload{
			ConnectionID: c.ID,
			CodeVerifier: pkce.Verifier,
			RedirectURI:  cfg.RedirectURI,
			CreatedAt:    connection.FormatTimestamp(b.now()),
		})
		return err
	})
	if err != nil {
		return nil, internalError(fmt.Errorf("start %s flow: %w", provider, err))
	}

	if b.metrics != nil {
		b.metrics.FlowsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
	}
	slog.InfoContext(logger.WithConnectionID(ctx, conn.ID), "oauth flow started")

	return &StartResult{
		Provider:     provider,
		AuthorizeURL: p.AuthorizeURL(cfg, state, pkce.Challenge),
		State:        state,
		ExpiresAt:    deref(conn.ExpiresAt),
	}, nil
}

// Complete handles the provider redirect. Every failure after the pending
// connection is found moves it to failed.
func (b *CredentialBroker) Complete(ctx context.Context, provider string, params CallbackParams) (res *CompleteResult, err error) {
	ctx, span := cfotel.StartBrokerSpan(ctx, "complete", provider)
	defer span.End()
	defer func() { b.recordOutcome(ctx, b.flowsCompleted(), provider, err) }()

	p, cfg, err := b.resolve(provider)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithProvider(ctx, provider)
	if params.State == "" {
		return nil, protocolError(oauth.CodeMissingState)
	}

	conn, err := b.ledger.FindPendingByState(ctx, provider, params.State)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, protocolError(oauth.CodeInvalidState)
	}
	if err != nil {
		return nil, internalError(err)
	}
	ctx = logger.WithConnectionID(ctx, conn.ID)

	if conn.Expired(b.now()) {
		return nil, b.fail(ctx, conn, protocolError(oauth.CodeInvalidState))
	}
	if params.Error != "" {
		return nil, b.fail(ctx, conn, protocolError(params.Error))
	}
	if params.Code == "" {
		return nil, b.fail(ctx, conn, protocolError(oauth.CodeMissingCode))
	}

	var st secret.StatePayload
	_, ok, err := b.secrets.Get(ctx, provider, secret.StateName(provider, params.State), &st)
	if err != nil {
		return nil, b.fail(ctx, conn, internalError(err))
	}
	if !ok || st.CodeVerifier == "" {
		return nil, b.fail(ctx, conn, protocolError(oauth.CodeMissingPKCEVerifier))
	}
	if st.RedirectURI != "" {
		// The token endpoint requires the redirect URI sent on authorize.
		cfg.RedirectURI = st.RedirectURI
	}

	started := time.Now()
	payload, err := p.ExchangeCode(ctx, cfg, params.Code, st.CodeVerifier)
	b.recordExchange(ctx, provider, "exchange", started)
	if err != nil {
		return nil, b.fail(ctx, conn, upstreamError(err, oauth.CodeExchangeFailed))
	}

	// The code is spent by now, so a failed write must not leave the row pending.
	g, err := b.applyGrant(ctx, provider, conn.ID, cfg.Scopes, p.Extract(payload, conn.AccountRef))
	if err != nil {
		return nil, b.fail(ctx, conn, internalError(err))
	}

	slog.InfoContext(ctx, "oauth connection established", "account_ref", g.AccountRef)
	b.publish(ctx, messagequeue.SubjectConnectionConnected, messagequeue.ConnectionEvent{
		Provider:     provider,
		ConnectionID: conn.ID,
		AccountRef:   g.AccountRef,
		Status:       string(connection.StatusConnected),
		ExpiresAt:    deref(g.ExpiresAt),
	})

	return &CompleteResult{
		Provider:   provider,
		Status:     string(connection.StatusConnected),
		AccountRef: g.AccountRef,
		ExpiresAt:  deref(g.ExpiresAt),
	}, nil
}

// Refresh trades the stored refresh token for new tokens. It never returns an
// error: every failure is reported as Refreshed false with a Reason, and the
// connection keeps its status.
func (b *CredentialBroker) Refresh(ctx context.Context, provider string) (res *RefreshResult) {
	ctx, span := cfotel.StartBrokerSpan(ctx, "refresh", provider)
	defer span.End()

	res = &RefreshResult{Provider: provider}
	var outcome error
	defer func() { b.recordOutcome(ctx, b.refreshes(), provider, outcome) }()

	notRefreshed := func(err *BrokerError) *RefreshResult {
		outcome = err
		res.Reason = err.Code
		return res
	}

	p, cfg, err := b.resolve(provider)
	if err != nil {
		return notRefreshed(asBrokerError(err))
	}
	ctx = logger.WithProvider(ctx, provider)

	conn, err := b.ledger.Latest(ctx, provider)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return notRefreshed(protocolError(oauth.CodeNoConnectedAccount))
	case err != nil:
		slog.ErrorContext(ctx, "refresh: load connection", "error", err)
		return notRefreshed(internalError(err))
	case conn.Status != connection.StatusConnected:
		return notRefreshed(protocolError(oauth.CodeNoConnectedAccount))
	}
	ctx = logger.WithConnectionID(ctx, conn.ID)

	var rt secret.RefreshTokenPayload
	_, ok, err := b.secrets.Get(ctx, provider, secret.RefreshTokenName(provider, conn.ID), &rt)
	if err != nil {
		slog.ErrorContext(ctx, "refresh: load refresh token", "error", err)
		return notRefreshed(internalError(err))
	}
	if !ok || rt.RefreshToken == "" {
		return notRefreshed(protocolError(oauth.CodeRefreshTokenMissing))
	}

	started := time.Now()
	payload, err := p.Refresh(ctx, cfg, rt.RefreshToken)
	b.recordExchange(ctx, provider, "refresh", started)
	if err != nil {
		be := upstreamError(err, oauth.CodeRefreshFailed)
		slog.WarnContext(ctx, "oauth refresh rejected", "error_code", be.Code, "error", err)
		b.publish(ctx, messagequeue.SubjectConnectionRefreshFailed, messagequeue.ConnectionEvent{
			Provider:     provider,
			ConnectionID: conn.ID,
			AccountRef:   conn.AccountRef,
			Status:       string(conn.Status),
			Reason:       be.Code,
		})
		b.notifier.Notify(ctx, notifier.Notification{
			Title:   provider + " token refresh failed",
			Message: fmt.Sprintf("Refresh for account %s was rejected (%s). The connection may need to be re-authorized.", conn.AccountRef, be.Code),
			Level:   "warning",
			Source:  AlertRefreshFailed,
		})
		return notRefreshed(be)
	}

	g, err := b.applyGrant(ctx, provider, conn.ID, conn.Scopes, p.Extract(payload, conn.AccountRef))
	if err != nil {
		slog.ErrorContext(ctx, "refresh: store tokens", "error", err)
		return notRefreshed(internalError(err))
	}

	slog.InfoContext(ctx, "oauth tokens refreshed")
	b.publish(ctx, messagequeue.SubjectConnectionRefreshed, messagequeue.ConnectionEvent{
		Provider:     provider,
		ConnectionID: conn.ID,
		AccountRef:   g.AccountRef,
		Status:       string(connection.StatusConnected),
		ExpiresAt:    deref(g.ExpiresAt),
	})

	res.Refreshed = true
	res.AccountRef = g.AccountRef
	res.ExpiresAt = deref(g.ExpiresAt)
	return res
}

// Status reports the provider's connection health from stored state. It is
// recomputed on every call.
func (b *CredentialBroker) Status(ctx context.Context, provider string) integration.ProviderStatus {
	ctx, span := cfotel.StartBrokerSpan(ctx, "status", provider)
	defer span.End()

	now := b.now()
	st := integration.ProviderStatus{
		Provider:         provider,
		Status:           integration.StatusNotConfigured,
		CheckedAt:        now.UTC(),
		RefreshSupported: true,
	}

	if _, _, err := b.resolve(provider); err != nil {
		code := ErrorCode(err)
		if code == oauth.CodeUnsupportedProvider {
			st.RefreshSupported = false
		}
		st.Detail = code
		return st
	}
	st.Configured = true
	ctx = logger.WithProvider(ctx, provider)

	conn, err := b.ledger.Latest(ctx, provider)
	if errors.Is(err, domain.ErrNotFound) {
		st.Status = integration.StatusDisconnected
		return st
	}
	if err != nil {
		slog.ErrorContext(ctx, "status: load connection", "error", err)
		st.Status = integration.StatusError
		st.Detail = "connection lookup failed"
		return st
	}
	st.ExpiresAt = deref(conn.ExpiresAt)

	switch conn.Status {
	case connection.StatusPending:
		st.Status = integration.StatusPending
		return st
	case connection.StatusFailed:
		st.Status = integration.StatusFailed
		return st
	}

	var at secret.AccessTokenPayload
	rec, ok, err := b.secrets.Get(ctx, provider, secret.AccessTokenName(provider, conn.ID), &at)
	if err != nil {
		slog.ErrorContext(logger.WithConnectionID(ctx, conn.ID), "status: load access token", "error", err)
		st.Status = integration.StatusError
		st.Detail = "secret lookup failed"
		return st
	}
	if !ok || at.AccessToken == "" {
		st.Status = integration.StatusDisconnected
		st.Detail = "access token unavailable"
		return st
	}
	if conn.Expired(now) {
		st.Status = integration.StatusExpired
		return st
	}

	st.Connected = true
	st.Status = integration.StatusConnected
	if err := b.secrets.MarkValidated(ctx, rec.ID, now); err != nil {
		slog.WarnContext(ctx, "status: stamp last_validated_at", "record_id", rec.ID, "error", err)
	}
	return st
}

// grant is the identity written to the ledger after a token issuance.
type grant struct {
	AccountRef string
	Scopes     []string
	ExpiresAt  *string
}

// applyGrant marks the connection connected and appends the new token
// records in one transaction.
func (b *CredentialBroker) applyGrant(ctx context.Context, provider, connID string, requested []string, id oauthprovider.Identity) (grant, error) {
	now := b.now()
	g := grant{AccountRef: id.AccountRef, Scopes: id.Scopes}
	if len(g.Scopes) == 0 {
		g.Scopes = requested
	}
	if id.ExpiresIn != nil {
		exp := connection.FormatTimestamp(now.Add(*id.ExpiresIn))
		g.ExpiresAt = &exp
	}
	issuedAt := connection.FormatTimestamp(now)

	err := b.db.InTx(ctx, func(tx database.Store) error {
		if err := b.ledger.WithStore(tx).ApplySuccess(ctx, connID, g.AccountRef, g.Scopes, g.ExpiresAt); err != nil {
			return err
		}
		secrets := b.secrets.WithStore(tx)
		if _, err := secrets.Put(ctx, provider, secret.AccessTokenName(provider, connID), secret.AccessTokenPayload{
			AccessToken: id.AccessToken,
			TokenType:   id.TokenType,
			Scopes:      g.Scopes,
			AccountRef:  g.AccountRef,
			ExpiresAt:   deref(g.ExpiresAt),
			IssuedAt:    issuedAt,
		}); err != nil {
			return err
		}
		if id.RefreshToken == "" {
			return nil
		}
		_, err := secrets.Put(ctx, provider, secret.RefreshTokenName(provider, connID), secret.RefreshTokenPayload{
			RefreshToken: id.RefreshToken,
			IssuedAt:     issuedAt,
		})
		return err
	})
	if err != nil {
		return grant{}, fmt.Errorf("store %s tokens: %w", provider, err)
	}
	return g, nil
}

// fail marks conn failed and reports cause. If the ledger write itself
// fails, that store error wins.
func (b *CredentialBroker) fail(ctx context.Context, conn *connection.Connection, cause *BrokerError) error {
	ctx = logger.WithConnectionID(logger.WithProvider(ctx, conn.Provider), conn.ID)
	slog.WarnContext(ctx, "oauth flow failed", "error_code", cause.Code, "error", cause.Err)

	if err := b.ledger.MarkFailed(ctx, conn.ID); err != nil {
		return internalError(fmt.Errorf("%s: %w", cause.Code, err))
	}

	b.publish(ctx, messagequeue.SubjectConnectionFailed, messagequeue.ConnectionEvent{
		Provider:     conn.Provider,
		ConnectionID: conn.ID,
		Status:       string(connection.StatusFailed),
		Reason:       cause.Code,
	})
	b.notifier.Notify(ctx, notifier.Notification{
		Title:   conn.Provider + " connection failed",
		Message: fmt.Sprintf("Authorization for %s did not complete (%s).", conn.Provider, cause.Code),
		Level:   "error",
		Source:  AlertConnectionFailed,
	})
	return cause
}

func (b *CredentialBroker) publish(ctx context.Context, subject string, ev messagequeue.ConnectionEvent) {
	ev.OccurredAt = connection.FormatTimestamp(b.now())
	data, err := json.Marshal(ev)
	if err != nil {
		slog.ErrorContext(ctx, "marshal connection event", "subject", subject, "error", err)
		return
	}
	subject = messagequeue.SubjectFor(subject, ev.Provider)
	if err := b.events.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "publish connection event failed", "subject", subject, "error", err)
	}
}

func (b *CredentialBroker) flowsCompleted() metric.Int64Counter {
	if b.metrics == nil {
		return nil
	}
	return b.metrics.FlowsCompleted
}

func (b *CredentialBroker) refreshes() metric.Int64Counter {
	if b.metrics == nil {
		return nil
	}
	return b.metrics.Refreshes
}

func (b *CredentialBroker) recordOutcome(ctx context.Context, counter metric.Int64Counter, provider string, err error) {
	if counter == nil {
		return
	}
	outcome, code := "success", ""
	if err != nil {
		outcome, code = "failure", ErrorCode(err)
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
		attribute.String("code", code),
	))
}

func (b *CredentialBroker) recordExchange(ctx context.Context, provider, op string, started time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.ExchangeDuration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("op", op),
	))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
