package client

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Local events published on the bus next to the wire events
const (
	// EventConnectionState carries a StateChange
	EventConnectionState = "connection:state"
	// EventRoomChanged carries the id of a room whose snapshot changed
	EventRoomChanged = "session:room_changed"
)

// Bus is a small pub/sub keyed by event name. Handlers run on the publishing
// goroutine in subscription order and must not block.
type Bus struct {
	mu       sync.RWMutex
	next     int
	handlers map[string]map[int]func(json.RawMessage)
	order    map[string][]int
	log      *zap.SugaredLogger
}

// NewBus creates an empty bus
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.L()
	}
	return &Bus{
		handlers: make(map[string]map[int]func(json.RawMessage)),
		order:    make(map[string][]int),
		log:      log.Sugar(),
	}
}

// Subscribe registers fn for event. The returned func removes it and is safe to call twice.
func (b *Bus) Subscribe(event string, fn func(json.RawMessage)) (dispose func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]func(json.RawMessage))
	}
	b.handlers[event][id] = fn
	b.order[event] = append(b.order[event], id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[event], id)
			ids := b.order[event]
			for i, v := range ids {
				if v == id {
					b.order[event] = append(ids[:i:i], ids[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers data to every handler of event
func (b *Bus) Publish(event string, data json.RawMessage) {
	b.mu.RLock()
	fns := make([]func(json.RawMessage), 0, len(b.order[event]))
	for _, id := range b.order[event] {
		if fn, ok := b.handlers[event][id]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(data)
	}
}

// Emit encodes v and publishes it
func (b *Bus) Emit(event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		b.log.Errorw("failed to encode bus event", "event", event, "error", err)
		return
	}
	b.Publish(event, data)
}

// On subscribes a typed handler. Payloads that do not decode into T are logged and dropped.
func On[T any](b *Bus, event string, fn func(T)) (dispose func()) {
	return b.Subscribe(event, func(data json.RawMessage) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			b.log.Warnw("dropping malformed event", "event", event, "error", err)
			return
		}
		fn(v)
	})
}
