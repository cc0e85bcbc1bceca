package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

var ErrJetStreamDisabled = errors.New("JetStream not initialized")

// Publisher is the part of the broker the notification sink depends on.
type Publisher interface {
	PublishSync(ctx context.Context, subject string, data []byte) error
}

// NatsBroker publishes console events to NATS.
type NatsBroker struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	config config.Config
}

// NewNatsBroker connects to the server named in cfg.Nats.
func NewNatsBroker(cfg config.Config) (*NatsBroker, error) {
	client := &NatsBroker{
		config: cfg,
	}

	if err := client.connect(); err != nil {
		return nil, err
	}

	return client, nil
}

func (c *NatsBroker) connect() error {
	var err error

	opts := []nats.Option{
		nats.Name(common.AppName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("server", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info().Msg("NATS connection closed")
		}),
	}

	if c.config.Nats.Username != "" && c.config.Nats.Password != "" {
		opts = append(opts, nats.UserInfo(c.config.Nats.Username, c.config.Nats.Password))
	}

	c.conn, err = nats.Connect(c.config.Nats.URL(), opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if c.config.Nats.JetStreamEnabled {
		js, err := jetstream.New(c.conn)
		if err != nil {
			c.conn.Close()
			return fmt.Errorf("failed to create JetStream context: %w", err)
		}
		c.js = js
	}

	log.Info().
		Str("server", c.conn.ConnectedUrl()).
		Bool("jetstream", c.js != nil).
		Msg("Connected to NATS")
	return nil
}

// Close drains the connection.
func (c *NatsBroker) Close() error {
	if c.conn != nil && c.conn.IsConnected() {
		return c.conn.Drain()
	}
	return nil
}

// IsConnected reports whether the connection is currently up.
func (c *NatsBroker) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// PublishSync publishes data on subject. With JetStream it waits for the
// stream ack; otherwise it flushes the core connection.
func (c *NatsBroker) PublishSync(ctx context.Context, subject string, data []byte) error {
	if c.js == nil {
		if err := c.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish message to %s: %w", subject, err)
		}
		if err := c.conn.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("failed to flush message to %s: %w", subject, err)
		}
		return nil
	}

	ack, err := c.js.Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", subject, err)
	}

	log.Debug().Str("subject", subject).Uint64("seq", ack.Sequence).Msg("Published message to NATS and received ack")
	return nil
}

// EnsureStream creates or updates the stream that captures subjects.
func (c *NatsBroker) EnsureStream(ctx context.Context, name string, subjects ...string) (jetstream.Stream, error) {
	if c.js == nil {
		return nil, ErrJetStreamDisabled
	}

	log.Info().
		Str("name", name).
		Strs("subjects", subjects).
		Msg("Attempting to create or update JetStream stream")

	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		log.Error().Err(err).Str("stream", name).Msg("Failed to create or update stream")
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	log.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Msg("Created JetStream stream")

	return stream, nil
}

// SetupNatsBroker connects the broker and prepares the notification stream
// when JetStream is enabled.
func SetupNatsBroker(ctx context.Context, cfg config.Config, stream string, subjects ...string) (*NatsBroker, error) {
	client, err := NewNatsBroker(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating NATS client: %w", err)
	}

	if client.js != nil && stream != "" {
		if _, err := client.EnsureStream(ctx, stream, subjects...); err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	return client, nil
}
