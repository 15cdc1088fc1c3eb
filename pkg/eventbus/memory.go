package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBus is an in-process Bus used in tests and single-node setups.
// It delivers synchronously to every subscriber of a topic, which makes
// test assertions deterministic.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
}

// NewMemoryBus creates an in-memory bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

// Publish delivers the event to all handlers subscribed to topic
func (b *MemoryBus) Publish(ctx context.Context, topic, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	event := &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return fmt.Errorf("bus closed")
	}

	for _, h := range handlers {
		// Handler errors are swallowed like the NATS bus does: events
		// are advisory and must not fail the publishing operation.
		_ = h(ctx, event)
	}
	return nil
}

// Subscribe registers handler for topic. The queue name is ignored;
// in-process delivery goes to every subscriber.
func (b *MemoryBus) Subscribe(_ context.Context, topic, _ string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Close stops further publishes
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
