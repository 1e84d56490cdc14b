package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const defaultSubjectPrefix = "library.notifications"

// NATSPublisher republishes events for other consumers (mail, push gateways).
// Subjects: <prefix>.<userID> or <prefix>.broadcast.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("libraryhub"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc, prefix: defaultSubjectPrefix}, nil
}

func Subject(prefix string, event Event) string {
	if event.Broadcast() {
		return prefix + ".broadcast"
	}
	return prefix + "." + event.UserID
}

func (p *NATSPublisher) Emit(ctx context.Context, event Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}
	if err := p.conn.Publish(Subject(p.prefix, event), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}
