package events

import (
	"context"
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// EventCartRefresh is emitted after a reconciliation pass mutated the
	// cart, so visible cart widgets re-render.
	EventCartRefresh EventType = "cart.refresh"
	// EventGiftChoiceRequired is emitted when a goal offers several reward
	// products and the shopper must pick.
	EventGiftChoiceRequired EventType = "gift.choice_required"
	// EventReconcileCompleted is emitted at the end of every pass,
	// mutations or not.
	EventReconcileCompleted EventType = "reconcile.completed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// CartRefreshData identifies the cart whose contents changed.
type CartRefreshData struct {
	CartID    string
	Mutations int
}

// GiftChoiceRequiredData carries the candidate set for a selection UI.
type GiftChoiceRequiredData struct {
	CartID        string
	CampaignID    string
	CandidateIDs  []string
	MaxSelectable int
}

// ReconcileCompletedData summarizes a finished pass.
type ReconcileCompletedData struct {
	CartID    string
	Mutations int
	Err       error
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus manages event handlers and event publishing. Handlers run
// asynchronously; a slow subscriber never blocks a reconciliation pass.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewBus creates a new event bus.
func NewBus(enabled bool) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	if !b.enabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers.
func (b *Bus) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !b.enabled {
		return
	}

	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, handler := range handlers {
		go func(h Handler) {
			_ = h(ctx, event)
		}(handler)
	}
}

// Shutdown drops all handlers and disables further publishing.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enabled = false
	b.handlers = make(map[EventType][]Handler)
}
