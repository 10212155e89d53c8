package eventbus

import (
	"sync"
	"time"

	"github.com/transdock/transdock/internal/observability"
	"go.uber.org/zap"
)

// Event is one progress notification fanned out to subscribers.
type Event struct {
	Type      string         `json:"type"`
	Data      any            `json:"data"`
	UserID    string         `json:"user_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// subscriber is one registered listener: a buffered channel plus the
// event-type set (empty = all types) and optional user scoping it
// filters deliveries by.
type subscriber struct {
	id         string
	userID     string
	eventTypes map[string]bool // empty set means "all types"
	ch         chan Event
}

// Broadcaster is a single-writer/multi-reader fan-out queue,
// generalizing the websocket hub pattern beyond one global broadcast:
// Emit filters delivery to subscribers whose registered event-type set
// contains the event and whose userID matches when one is given.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	logger      *observability.Logger
	bufferSize  int
	running     bool
}

// NewBroadcaster constructs a Broadcaster. Each subscriber's channel
// is buffered to bufferSize; once full, new events are dropped for
// that subscriber and a warning is logged (events are advisory).
func NewBroadcaster(logger *observability.Logger, bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Broadcaster{
		subscribers: make(map[string]*subscriber),
		logger:      logger,
		bufferSize:  bufferSize,
	}
}

// Start marks the broadcaster as accepting emits.
func (b *Broadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = true
	if b.logger != nil {
		b.logger.Info("event broadcaster started")
	}
}

// Stop closes every subscriber channel and stops accepting emits.
func (b *Broadcaster) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = false
	for id, s := range b.subscribers {
		close(s.ch)
		delete(b.subscribers, id)
	}
	if b.logger != nil {
		b.logger.Info("event broadcaster stopped")
	}
}

// Subscribe registers a new listener scoped to eventTypes (nil/empty
// means all types) and optionally a single userID. Returns the
// receive channel; the caller-chosen id is what Unsubscribe takes.
func (b *Broadcaster) Subscribe(id, userID string, eventTypes []string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	types := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = true
	}

	sub := &subscriber{
		id:         id,
		userID:     userID,
		eventTypes: types,
		ch:         make(chan Event, b.bufferSize),
	}
	b.subscribers[id] = sub
	return sub.ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Emit delivers an event to every subscriber whose type set contains
// eventType (or is empty) and whose userID matches when userID is
// non-empty. Non-blocking: a subscriber with a full buffer has the
// event dropped for it, logged at Warn.
func (b *Broadcaster) Emit(eventType string, data any, userID string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.running {
		return
	}

	event := Event{Type: eventType, Data: data, UserID: userID, Timestamp: time.Now()}

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) > 0 && !sub.eventTypes[eventType] {
			continue
		}
		if userID != "" && sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			if b.logger != nil {
				b.logger.Warn("subscriber buffer full, dropping event", zap.String("subscriber_id", sub.id), zap.String("event_type", eventType))
			}
		}
	}
}

// SubscriberCount reports the current number of registered listeners.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
