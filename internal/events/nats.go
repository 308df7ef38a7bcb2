package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix namespaces every subject this service publishes on.
const SubjectPrefix = "gitpilot"

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes events as JSON on core NATS subjects.
type NATSPublisher struct {
	nc     conn
	close  func()
	logger *slog.Logger
}

// ConnectNATS dials url and returns a publisher that owns the connection.
// The client reconnects on its own; publishes made while disconnected are
// buffered by the client.
func ConnectNATS(url string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gitpilot"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connecting to nats at %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc, close: nc.Close, logger: logger}, nil
}

// Subject returns the subject an event of type eventType is published on.
func Subject(eventType string) string {
	return SubjectPrefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encoding %s: %w", e.Type, err)
	}
	if err := p.nc.Publish(Subject(e.Type), data); err != nil {
		return fmt.Errorf("events: publishing %s: %w", e.Type, err)
	}
	p.logger.Debug("event published",
		slog.String("type", e.Type),
		slog.String("requestID", e.RequestID),
	)
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() {
	if p.close != nil {
		p.close()
	}
}
