// Package gateway wires the trust core's components into an HTTP+WS
// server: internal/authn gates the WebSocket upgrade, the origin guard and
// rate limiter screen each connection right after it is upgraded, and a
// small JSON-RPC loop dispatches chat.approval.* to internal/approval.
package gateway

import (
	"log/slog"
	"sync"

	"github.com/clawinfra/trustcore/internal/approval"
)

// eventBufferSize bounds how many undelivered approval events a slow
// subscriber can accumulate before frames are dropped for it.
const eventBufferSize = 32

// Subscription is a live per-session feed of approval events, held by a
// WebSocket connection for as long as it is authenticated as that session.
type Subscription struct {
	sessionKey string
	ch         chan approval.Event
}

// Events returns the channel new approval.Events for this session arrive
// on. Closed when the subscription is removed.
func (s *Subscription) Events() <-chan approval.Event { return s.ch }

// EventBus fans out approval events to per-session subscribers. Grounded
// on internal/interfaces.Observer's per-event-method shape from the
// teacher, adapted from callback methods to channel fan-out: here the
// "observer" is a live WebSocket connection rather than a telemetry sink,
// so delivery is push-to-channel instead of a synchronous call.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	logger *slog.Logger
}

// NewEventBus creates an empty bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		subs:   make(map[string]map[*Subscription]struct{}),
		logger: logger.With("component", "eventbus"),
	}
}

// Subscribe registers interest in a session's approval events.
func (b *EventBus) Subscribe(sessionKey string) *Subscription {
	sub := &Subscription{sessionKey: sessionKey, ch: make(chan approval.Event, eventBufferSize)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[sessionKey] == nil {
		b.subs[sessionKey] = make(map[*Subscription]struct{})
	}
	b.subs[sessionKey][sub] = struct{}{}
	return sub
}

// Unsubscribe removes and closes sub. Safe to call once per subscription.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.sessionKey]; ok {
		if _, present := set[sub]; present {
			delete(set, sub)
			close(sub.ch)
		}
		if len(set) == 0 {
			delete(b.subs, sub.sessionKey)
		}
	}
}

// publish delivers ev to every subscriber of ev.SessionKey. Best-effort: a
// subscriber whose buffer is full has the frame dropped rather than
// blocking the coordinator that called Emitter().
func (b *EventBus) publish(ev approval.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[ev.SessionKey] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("dropping approval event, subscriber buffer full",
				"session_key", ev.SessionKey, "request_id", ev.Data.RequestID)
		}
	}
}

// Emitter returns an approval.Emitter backed by this bus, suitable for
// passing directly to approval.New.
func (b *EventBus) Emitter() approval.Emitter {
	return b.publish
}
