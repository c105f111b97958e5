// Package events publishes investigation status transitions to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// StatusEvent is published on every investigation status transition.
type StatusEvent struct {
	InvestigationID string    `json:"investigation_id"`
	Status          string    `json:"status"`
	Attempts        int       `json:"attempts"`
	Error           string    `json:"error,omitempty"`
	At              time.Time `json:"at"`
}

type Publisher interface {
	PublishStatus(ctx context.Context, ev StatusEvent) error
	Close()
}

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	publish func(subject string, data []byte) error
	logger  *slog.Logger
}

// NewNATSPublisher connects to url and publishes under subject.<status>.
func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("legitcheck"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
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
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	logger.Info("connected to nats", "url", url, "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject, publish: conn.Publish, logger: logger}, nil
}

// Subject returns the subject an event with the given status goes to.
func (p *NATSPublisher) Subject(status string) string {
	return p.subject + "." + status
}

func (p *NATSPublisher) PublishStatus(ctx context.Context, ev StatusEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling status event: %w", err)
	}
	subject := p.Subject(ev.Status)
	if err := p.publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	p.logger.Debug("published status event", "subject", subject, "investigation_id", ev.InvestigationID)
	return nil
}

func (p *NATSPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}

// Nop discards events. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) PublishStatus(context.Context, StatusEvent) error { return nil }
func (Nop) Close()                                           {}
