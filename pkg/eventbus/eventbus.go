package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/yemeli/swiftride/pkg/logger"
)

// Event is the envelope published on every topic. Delivery is
// at-least-once with no ordering guarantee across topics, so handlers
// must tolerate duplicates and must never be the sole source of truth
// for a state change.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Handler processes one delivered event
type Handler func(ctx context.Context, event *Event) error

// Bus is the publish/subscribe fabric consumed by dispatch and lifecycle code
type Bus interface {
	Publish(ctx context.Context, topic, eventType string, data interface{}) error
	Subscribe(ctx context.Context, topic, queue string, handler Handler) error
	Close()
}

// NATSBus is the production Bus backed by NATS queue groups
type NATSBus struct {
	conn *nats.Conn
}

// NewNATSBus connects to the NATS server at url
func NewNATSBus(url string) (*NATSBus, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSBus{conn: conn}, nil
}

// Publish marshals data into an Event envelope and publishes it on topic
func (b *NATSBus) Publish(_ context.Context, topic, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	event := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.conn.Publish(topic, raw); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler on topic within a queue group. Handler
// errors are logged, not retried; redelivery is the publisher's concern.
func (b *NATSBus) Subscribe(ctx context.Context, topic, queue string, handler Handler) error {
	_, err := b.conn.QueueSubscribe(topic, queue, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("eventbus: malformed event",
				zap.String("topic", topic),
				zap.Error(err),
			)
			return
		}
		if err := handler(ctx, &event); err != nil {
			logger.Error("eventbus: handler failed",
				zap.String("topic", topic),
				zap.String("event_id", event.ID),
				zap.String("event_type", event.Type),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

// Close drains the connection
func (b *NATSBus) Close() {
	if b.conn != nil {
		_ = b.conn.Drain()
	}
}
