package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url, name string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(toMessage(msg))
	})
	return err
}

func (n *NATSEventBus) Close() error {
	return n.conn.Drain()
}

func toMessage(msg *nats.Msg) *Message {
	now := time.Now()
	return &Message{
		Subject:   msg.Subject,
		Data:      msg.Data,
		Timestamp: now,
		ID:        fmt.Sprintf("%d", now.UnixNano()),
	}
}

// Visitor change subjects
const (
	VisitorsAll      = "visitors.>"
	VisitorsInserted = "visitors.inserted"
	VisitorsUpdated  = "visitors.updated"
	VisitorsDeleted  = "visitors.deleted"
)

// Change types carried by ChangeEvent.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeEvent is the payload of every visitors.* subject and of the SSE feed.
type ChangeEvent struct {
	Type       string    `json:"type"`
	Table      string    `json:"table"`
	RecordID   string    `json:"record_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SubjectFor maps a change type to its subject.
func SubjectFor(changeType string) (string, error) {
	switch changeType {
	case ChangeInsert:
		return VisitorsInserted, nil
	case ChangeUpdate:
		return VisitorsUpdated, nil
	case ChangeDelete:
		return VisitorsDeleted, nil
	}
	return "", fmt.Errorf("unknown change type %q", changeType)
}

// DecodeChange parses a bus message into a ChangeEvent.
func DecodeChange(msg *Message) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return ev, fmt.Errorf("decode change event on %s: %w", msg.Subject, err)
	}
	if ev.Type == "" {
		return ev, fmt.Errorf("change event on %s has no type", msg.Subject)
	}
	return ev, nil
}
