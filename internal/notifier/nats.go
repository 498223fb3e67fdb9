package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

// DefaultNATSSubject is the subject alert events are published on.
const DefaultNATSSubject = "cognifyx.alerts"

// NATSConfig configures the NATS mirror.
type NATSConfig struct {
	URL     string
	Subject string
	Timeout time.Duration
}

// natsConn is the subset of *nats.Conn the notifier needs.
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSNotifier publishes each alert event as JSON on a NATS subject.
type NATSNotifier struct {
	conn    natsConn
	subject string
	timeout time.Duration
	logger  *slog.Logger
}

// DialNATS connects to the server in cfg and returns a notifier.
func DialNATS(cfg NATSConfig, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("cognifyx"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	logger.Info("nats mirror connected", "url", cfg.URL)
	return newNATSNotifier(nc, cfg, logger), nil
}

func newNATSNotifier(conn natsConn, cfg NATSConfig, logger *slog.Logger) *NATSNotifier {
	if cfg.Subject == "" {
		cfg.Subject = DefaultNATSSubject
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSNotifier{
		conn:    conn,
		subject: cfg.Subject,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Name returns "nats".
func (n *NATSNotifier) Name() string { return "nats" }

// Send publishes event and waits for the server to acknowledge the flush.
func (n *NATSNotifier) Send(ctx context.Context, event *models.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	if err := n.conn.FlushTimeout(n.timeout); err != nil {
		return fmt.Errorf("flush %s: %w", n.subject, err)
	}

	n.logger.Debug("alert mirrored", "notifier", "nats", "subject", n.subject, "size", len(payload))
	return nil
}

// Close closes the connection.
func (n *NATSNotifier) Close() error {
	n.conn.Close()
	return nil
}
