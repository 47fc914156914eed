// Package messaging carries cross-frame messages between provider frames and
// the flows waiting on them.
package messaging

import (
	"encoding/json"
	"strings"
	"sync"
)

// Message is a cross-frame message as received by the page.
type Message struct {
	Origin string
	Data   []byte
}

// Envelope is the discriminated union of every message shape the flows
// understand. Only the discriminating fields are decoded; Raw keeps the rest.
type Envelope struct {
	MessageType string          `json:"MessageType,omitempty"`
	Event       string          `json:"event,omitempty"`
	ChargeUUID  string          `json:"chargeUuid,omitempty"`
	Status      string          `json:"status,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

const (
	MessageTypeProfileCompleted = "profile.completed"
	EventChallengeComplete      = "3ds-auth-complete"
	EventCheckoutClose          = "checkout-close"
)

// Decode parses message data. Providers post either a JSON object or a JSON
// string containing an object; both are accepted.
func Decode(data []byte) (Envelope, bool) {
	var env Envelope
	payload := data
	var inner string
	if err := json.Unmarshal(data, &inner); err == nil {
		payload = []byte(inner)
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, false
	}
	env.Raw = append(json.RawMessage(nil), payload...)
	return env, true
}

// Handler receives messages published on a Bus.
type Handler func(Message)

// Bus fans published messages out to every subscriber.
type Bus struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	next     uint64
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[uint64]Handler)}
}

// Subscribe registers h and returns a function removing it. The returned
// function is safe to call more than once.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers m to every current subscriber. Handlers run on the
// publishing goroutine.
func (b *Bus) Publish(m Message) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.RUnlock()
	for _, h := range hs {
		h(m)
	}
}

// Listeners returns the number of active subscribers.
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// AllowOrigins wraps h so that messages from any other origin are dropped.
// An empty allowlist accepts every origin.
func AllowOrigins(h Handler, origins ...string) Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = normalizeOrigin(o); o != "" {
			allowed[o] = true
		}
	}
	return func(m Message) {
		if len(allowed) > 0 && !allowed[normalizeOrigin(m.Origin)] {
			return
		}
		h(m)
	}
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
}
