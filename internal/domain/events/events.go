// Package events provides the inventory change notification channel.
// Ledger mutations publish events through a Publisher; consumers (alert
// rules, live dashboards) subscribe on a Bus, decoupled from the mutation's
// success path.
package events

import (
	"context"
	"sync"
	"time"

	"lotkeeper/internal/core/id"
	"lotkeeper/internal/core/types"
	"lotkeeper/pkg/logger"
)

// EventInventoryChanged is the event type tag used on the wire.
const EventInventoryChanged = "InventoryChanged"

// InventoryChanged is emitted after every successful ledger mutation.
type InventoryChanged struct {
	ProductID  id.ID          `json:"productId"`
	BatchID    id.ID          `json:"batchId"`
	Operation  string         `json:"operation"`
	Delta      types.Quantity `json:"delta"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Publisher emits inventory change events. The postgres implementation
// writes to a transactional outbox so events commit atomically with the
// ledger mutation that caused them.
type Publisher interface {
	Publish(ctx context.Context, ev InventoryChanged) error
}

// Handler consumes an inventory change event.
type Handler func(ctx context.Context, ev InventoryChanged)

// Bus dispatches events to in-process subscribers. Handlers must not block;
// the relay calls them sequentially.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all inventory change events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Dispatch delivers an event to every subscriber. Panics in a handler are
// contained so one bad subscriber cannot stall the relay.
func (b *Bus) Dispatch(ctx context.Context, ev InventoryChanged) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(ctx, "event handler panicked",
						"event", EventInventoryChanged,
						"product_id", ev.ProductID,
						"panic", r,
					)
				}
			}()
			h(ctx, ev)
		}()
	}
}
