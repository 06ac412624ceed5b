// Package notify delivers in-process events (low stock, data restored) to
// whatever UI collaborator has subscribed. Delivery is best-effort.
package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventLowStock     = "low_stock"
	EventDataRestored = "data_restored"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Listener receives events. A returned error is logged and otherwise ignored.
type Listener func(Event) error

type subscription struct {
	id string
	fn Listener
}

type Hub struct {
	clients    map[string]Listener
	register   chan subscription
	unregister chan string
	broadcast  chan Event
	quit       chan struct{}
	mutex      sync.Mutex
	once       sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]Listener),
		register:   make(chan subscription),
		unregister: make(chan string),
		broadcast:  make(chan Event, 64),
		quit:       make(chan struct{}),
	}
}

// Run dispatches events until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mutex.Lock()
			h.clients[sub.id] = sub.fn
			h.mutex.Unlock()
			log.Printf("[Notify] Listener %s registered", sub.id)

		case id := <-h.unregister:
			h.mutex.Lock()
			delete(h.clients, id)
			h.mutex.Unlock()

		case ev := <-h.broadcast:
			h.mutex.Lock()
			listeners := make([]subscription, 0, len(h.clients))
			for id, fn := range h.clients {
				listeners = append(listeners, subscription{id: id, fn: fn})
			}
			h.mutex.Unlock()
			for _, sub := range listeners {
				deliver(sub, ev)
			}

		case <-h.quit:
			return
		}
	}
}

// Close stops Run. Events still queued are dropped.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.quit) })
}

// Subscribe registers fn and returns the id to pass to Unsubscribe.
// Run must be going, otherwise Subscribe blocks.
func (h *Hub) Subscribe(fn Listener) string {
	id := uuid.NewString()
	select {
	case h.register <- subscription{id: id, fn: fn}:
	case <-h.quit:
	}
	return id
}

func (h *Hub) Unsubscribe(id string) {
	select {
	case h.unregister <- id:
	case <-h.quit:
	}
}

// Publish queues ev without blocking. A full queue drops the event.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("[Notify] Queue full, dropping %s event %s", ev.Type, ev.ID)
	}
}

// NotifyLowStock publishes the low-stock warning for one variant.
func (h *Hub) NotifyLowStock(displayName string, remaining int) {
	h.Publish(Event{
		Type:    EventLowStock,
		Message: LowStockMessage(displayName, remaining),
		Payload: map[string]interface{}{
			"item":      displayName,
			"remaining": remaining,
		},
	})
}

// NotifyDataRestored tells listeners that every cached view is stale.
func (h *Hub) NotifyDataRestored() {
	h.Publish(Event{
		Type:    EventDataRestored,
		Message: "Data restored from backup. Reload all views.",
	})
}

func LowStockMessage(displayName string, remaining int) string {
	return fmt.Sprintf("Inventory for %s is running low! Only %d remaining.", displayName, remaining)
}

func deliver(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Notify] Listener %s panicked on %s: %v", sub.id, ev.Type, r)
		}
	}()
	if err := sub.fn(ev); err != nil {
		log.Printf("[Notify] Listener %s failed on %s: %v", sub.id, ev.Type, err)
	}
}
