// internal/events/bus.go
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	TypeCustomDesignIntake         = "custom_design_intake"
	TypeDesignStatusChanged        = "design_status_changed"
	TypeRingConfigurationCompleted = "ring_configuration_completed"
	TypeWebhookSecurityAlert       = "webhook_security_alert"
)

type Event struct {
	ID      int64       `json:"id"`
	Type    string      `json:"type"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

type Handler func(ctx context.Context, ev Event)

// Bus is an in-process publish/subscribe hub. Handlers run synchronously on
// the publisher's goroutine in subscription order; a panicking handler is
// logged and does not affect the others.
type Bus struct {
	nextID atomic.Int64

	mu   sync.RWMutex
	subs map[string][]Handler
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], h)
	b.mu.Unlock()
}

// Publish delivers payload to every handler subscribed to eventType and
// returns the published event.
func (b *Bus) Publish(ctx context.Context, eventType string, payload interface{}) Event {
	ev := Event{
		ID:      b.nextID.Add(1),
		Type:    eventType,
		At:      time.Now().UTC(),
		Payload: payload,
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[eventType]))
	copy(handlers, b.subs[eventType])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, h, ev)
	}
	return ev
}

func (b *Bus) deliver(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"event_type": ev.Type,
				"event_id":   ev.ID,
				"panic":      r,
			}).Error("Event handler panicked")
		}
	}()
	h(ctx, ev)
}
