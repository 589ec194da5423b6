// Package nats implements the messagequeue.Publisher port using NATS JetStream.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/opsboard/internal/logger"
	"github.com/Strob0t/opsboard/internal/port/messagequeue"
)

const (
	streamName       = "OPSBOARD"
	validationBucket = "OPSBOARD_VALIDATIONS"

	// headerRequestID carries the originating HTTP request id.
	headerRequestID = "Opsboard-Request-Id"

	// eventRetention keeps lifecycle events long enough for late consumers.
	eventRetention = 7 * 24 * time.Hour
)

// Publisher implements messagequeue.Publisher using NATS JetStream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

var _ messagequeue.Publisher = (*Publisher)(nil)

// Connect establishes a connection to NATS and ensures the JetStream stream
// capturing integrations.> exists.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("opsboard"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"integrations.>"},
		MaxAge:   eventRetention,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", nc.ConnectedUrlRedacted(), "stream", streamName)
	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject and waits for the stream ack.
func (p *Publisher) Publish(ctx context.Context, subject string, data []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}

	if _, err := p.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// ValidationBucket opens (creating if needed) the JetStream KV bucket that
// backs the shared API-key validation cache. Entries expire after ttl.
func (p *Publisher) ValidationBucket(ctx context.Context, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := p.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      validationBucket,
		Description: "opsboard api key validation results",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream kv %s: %w", validationBucket, err)
	}
	return kv, nil
}

// Close drains and shuts down the NATS connection.
func (p *Publisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}
