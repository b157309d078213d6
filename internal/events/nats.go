package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes checkout events on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to url. The client reconnects on its own after
// the initial connection succeeds.
func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With("component", "events", "provider", "nats")

	conn, err := nats.Connect(url,
		nats.Name("shoppy"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to nats", "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

// Publish sends the event and flushes so the server has it before returning.
func (p *NATSPublisher) Publish(ctx context.Context, event CheckoutEvent) error {
	body, err := event.encode()
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = body
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set(nats.MsgIdHdr, event.CheckoutID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish checkout event: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush checkout event: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
