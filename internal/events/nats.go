// nats.go receives job events from NATS JetStream.
//
// Features:
//   - NKey authentication (public-key cryptography)
//   - Durable consumer per project so events published while the console
//     was stopped are delivered on the next start
//   - Automatic reconnection
//   - Malformed events are terminated, failed ones are NAKed for redelivery
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"
)

// StreamName is the JetStream stream carrying job events.
const StreamName = "JOB_EVENTS"

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	Servers   string // Comma-separated list of NATS server URLs
	NKeySeed  string // NKey seed for authentication (starts with SU)
	TenantID  string // Tenant ID for subject routing
	ProjectID string // Scopes the durable consumer name
}

// Subject returns the subject job events for the tenant are published on.
func (c NATSConfig) Subject() string {
	return fmt.Sprintf("jobs.%s.events", c.TenantID)
}

// ConsumerName returns the durable consumer name for this console.
// JetStream names may not contain dots or wildcards.
func (c NATSConfig) ConsumerName() string {
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return "jobconsole-" + r.Replace(c.ProjectID)
}

// NATSListener consumes job events from JetStream.
type NATSListener struct {
	config    NATSConfig
	handler   *Handler
	logger    *slog.Logger
	mu        sync.RWMutex
	nc        *nats.Conn
	js        jetstream.JetStream
	consumer  jetstream.Consumer
	connected bool
}

// NewNATSListener creates a listener. Call Connect before Run.
func NewNATSListener(cfg NATSConfig, handler *Handler, logger *slog.Logger) *NATSListener {
	return &NATSListener{
		config:  cfg,
		handler: handler,
		logger:  logger.With(slog.String("component", "nats")),
	}
}

// Connect establishes the NATS connection and JetStream context.
func (l *NATSListener) Connect(ctx context.Context) error {
	kp, err := nkeys.FromSeed([]byte(l.config.NKeySeed))
	if err != nil {
		return fmt.Errorf("invalid nkey seed: %w", err)
	}
	pubKey, err := kp.PublicKey()
	if err != nil {
		return fmt.Errorf("failed to get public key: %w", err)
	}

	opts := []nats.Option{
		nats.Name(l.config.ConsumerName()),
		nats.Nkey(pubKey, func(nonce []byte) ([]byte, error) {
			return kp.Sign(nonce)
		}),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.PingInterval(30 * time.Second),
		nats.MaxPingsOutstanding(3),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.setConnected(false)
			if err != nil {
				l.logger.Warn("NATS disconnected", slog.String("error", err.Error()))
			} else {
				l.logger.Info("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.setConnected(true)
			l.logger.Info("NATS reconnected", slog.String("server", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(l.config.Servers, opts...)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("jetstream init: %w", err)
	}

	l.mu.Lock()
	l.nc = nc
	l.js = js
	l.connected = true
	l.mu.Unlock()

	l.logger.Info("NATS connected",
		slog.String("server", nc.ConnectedUrl()),
		slog.String("subject", l.config.Subject()),
	)
	return nil
}

func (l *NATSListener) setConnected(v bool) {
	l.mu.Lock()
	l.connected = v
	l.mu.Unlock()
}

// Run creates the durable consumer and processes events until ctx is
// cancelled.
func (l *NATSListener) Run(ctx context.Context) {
	if err := l.setupConsumer(ctx); err != nil {
		l.logger.Error("failed to setup consumer", slog.String("error", err.Error()))
		return
	}

	for {
		if ctx.Err() != nil {
			l.logger.Info("NATS consumer stopping")
			return
		}

		msgs, err := l.consumer.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			l.logger.Warn("fetch error", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for msg := range msgs.Messages() {
			l.process(msg)
		}
		if err := msgs.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			l.logger.Warn("fetch completed with error", slog.String("error", err.Error()))
		}
	}
}

func (l *NATSListener) setupConsumer(ctx context.Context) error {
	stream, err := l.js.Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       l.config.ConsumerName(),
		FilterSubject: l.config.Subject(),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	l.consumer = consumer

	l.logger.Info("NATS consumer ready",
		slog.String("consumer", l.config.ConsumerName()),
		slog.String("subject", l.config.Subject()),
	)
	return nil
}

func (l *NATSListener) process(msg jetstream.Msg) {
	err := l.handler.Handle(msg.Data())
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, ErrMalformed):
		l.logger.Warn("discarding malformed event",
			slog.String("subject", msg.Subject()),
			slog.String("error", err.Error()),
		)
		_ = msg.Term()
	default:
		l.logger.Error("event processing failed",
			slog.String("subject", msg.Subject()),
			slog.String("error", err.Error()),
		)
		_ = msg.Nak()
	}
}

// IsConnected returns whether the connection is currently up.
func (l *NATSListener) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected && l.nc != nil && l.nc.IsConnected()
}

// Shutdown drains the connection. It implements shutdown.Shutdowner.
func (l *NATSListener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.nc == nil {
		return nil
	}
	err := l.nc.Drain()
	l.nc = nil
	l.connected = false
	l.logger.Info("NATS listener stopped")
	return err
}
