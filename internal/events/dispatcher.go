// Package events implements a named-event publish/subscribe registry.
//
// A Dispatcher is an owned instance: each connection manager holds its own,
// so independent connections never share listeners.
package events

import (
	"runtime/debug"
	"sync"

	"github.com/vibesense/phmwatch/internal/logger"
)

// Lifecycle and data event names emitted by the stream manager.
// Other names arrive verbatim from the "type" tag of inbound frames.
const (
	Connected       = "connected"
	Disconnected    = "disconnected"
	Data            = "data"
	Raw             = "raw"
	Error           = "error"
	ReconnectFailed = "reconnect_failed"

	FeatureUpdate = "feature_update"
	Alert         = "alert"
	SensorData    = "sensor_data"
	Pong          = "pong"
)

// Handler receives the payload of an emitted event.
type Handler func(payload any)

// ListenerID identifies a single registration so it can be removed later.
type ListenerID uint64

type listener struct {
	id      ListenerID
	handler Handler
}

// Dispatcher maps event names to ordered handler lists.
type Dispatcher struct {
	mu        sync.RWMutex
	nextID    ListenerID
	listeners map[string][]listener

	log     logger.Logger
	onPanic func(name string, recovered any)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report handler failures.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithPanicHook registers a callback invoked after a handler panic is recovered.
func WithPanicHook(fn func(name string, recovered any)) Option {
	return func(d *Dispatcher) {
		d.onPanic = fn
	}
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		listeners: make(map[string][]listener),
		log:       logger.NewEnvLogger("[events]"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// On registers handler for name and returns its registration id.
func (d *Dispatcher) On(name string, handler Handler) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners[name] = append(d.listeners[name], listener{id: id, handler: handler})
	return id
}

// Off removes the registration with the given id. Unknown ids are ignored.
func (d *Dispatcher) Off(name string, id ListenerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.listeners[name]
	for i, l := range list {
		if l.id != id {
			continue
		}
		// Copy so an in-flight Emit iterating the old slice is unaffected.
		next := make([]listener, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(d.listeners, name)
		} else {
			d.listeners[name] = next
		}
		return
	}
}

// Emit calls every handler registered for name, in registration order, on the
// caller's goroutine. Handler panics are recovered and logged; the remaining
// handlers still run.
func (d *Dispatcher) Emit(name string, payload any) {
	d.mu.RLock()
	list := d.listeners[name]
	d.mu.RUnlock()

	for _, l := range list {
		d.invoke(name, l.handler, payload)
	}
}

func (d *Dispatcher) invoke(name string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler for %q panicked: %v\n%s", name, r, debug.Stack())
			if d.onPanic != nil {
				d.onPanic(name, r)
			}
		}
	}()
	h(payload)
}

// RemoveAllListeners clears the entire registry.
func (d *Dispatcher) RemoveAllListeners() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = make(map[string][]listener)
}

// ListenerCount returns the number of handlers registered for name.
func (d *Dispatcher) ListenerCount(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[name])
}
