package hub

import (
	"sync"

	"github.com/kstaniek/go-can-telemetry/internal/identity"
	"github.com/kstaniek/go-can-telemetry/internal/logging"
)

// Listener receives data source lifecycle events. Implementations must be
// comparable (typically pointers); they are called synchronously from the
// goroutine performing Connect/Disconnect.
type Listener interface {
	OnSourceConnected(id identity.SourceID)
	OnSourceDisconnected(id identity.SourceID)
}

// ListenerFuncs adapts plain functions to Listener. Register it by pointer.
type ListenerFuncs struct {
	Connected    func(identity.SourceID)
	Disconnected func(identity.SourceID)
}

func (l *ListenerFuncs) OnSourceConnected(id identity.SourceID) {
	if l.Connected != nil {
		l.Connected(id)
	}
}

func (l *ListenerFuncs) OnSourceDisconnected(id identity.SourceID) {
	if l.Disconnected != nil {
		l.Disconnected(id)
	}
}

// Hub tracks listeners of one data source and fans lifecycle events out to them.
type Hub struct {
	mu        sync.RWMutex
	listeners []Listener
}

// New creates an empty Hub.
func New() *Hub { return &Hub{} }

// Subscribe registers l. It returns false if l is nil or already registered.
func (h *Hub) Subscribe(l Listener) bool {
	if l == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cur := range h.listeners {
		if cur == l {
			return false
		}
	}
	h.listeners = append(h.listeners, l)
	logging.L().Debug("listener_subscribed", "listeners", len(h.listeners))
	return true
}

// Unsubscribe removes l. It returns false if l was not registered.
func (h *Hub) Unsubscribe(l Listener) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, cur := range h.listeners {
		if cur == l {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			logging.L().Debug("listener_unsubscribed", "listeners", len(h.listeners))
			return true
		}
	}
	return false
}

// NotifyConnected calls OnSourceConnected on every listener in subscription order.
func (h *Hub) NotifyConnected(id identity.SourceID) {
	for _, l := range h.Snapshot() {
		l.OnSourceConnected(id)
	}
}

// NotifyDisconnected calls OnSourceDisconnected on every listener in subscription order.
func (h *Hub) NotifyDisconnected(id identity.SourceID) {
	for _, l := range h.Snapshot() {
		l.OnSourceDisconnected(id)
	}
}

// Snapshot returns a copy of the current listeners (read-only use).
// Notifications iterate a snapshot so listeners may (un)subscribe from a callback.
func (h *Hub) Snapshot() []Listener {
	h.mu.RLock()
	out := make([]Listener, len(h.listeners))
	copy(out, h.listeners)
	h.mu.RUnlock()
	return out
}

// Count returns the number of registered listeners.
func (h *Hub) Count() int { h.mu.RLock(); n := len(h.listeners); h.mu.RUnlock(); return n }
