package eventbus

import "sync"

// Hook observes an event and its payload.
type Hook func(event Event, payload any)

// PanicHook observes a subscriber panic along with the recovered value.
type PanicHook func(event Event, payload any, recovered any)

type hooks struct {
	mu      sync.RWMutex
	publish []Hook
	drop    []Hook
	panics  []PanicHook
}

// OnPublish registers fn to run after an event is enqueued. It runs on the
// publishing goroutine.
func (bus *EventBus) OnPublish(fn Hook) {
	bus.hooks.mu.Lock()
	defer bus.hooks.mu.Unlock()
	bus.hooks.publish = append(bus.hooks.publish, fn)
}

// OnDrop registers fn to run when an event is discarded because the buffer
// is full.
func (bus *EventBus) OnDrop(fn Hook) {
	bus.hooks.mu.Lock()
	defer bus.hooks.mu.Unlock()
	bus.hooks.drop = append(bus.hooks.drop, fn)
}

// OnPanic registers fn to run when a subscriber panics. A panicking hook is
// swallowed.
func (bus *EventBus) OnPanic(fn PanicHook) {
	bus.hooks.mu.Lock()
	defer bus.hooks.mu.Unlock()
	bus.hooks.panics = append(bus.hooks.panics, fn)
}

// snapshot copies a hook list under the read lock so hooks run unlocked.
func snapshot[T any](mu *sync.RWMutex, list []T) []T {
	mu.RLock()
	defer mu.RUnlock()
	return append([]T(nil), list...)
}

// send enqueues an event without blocking. Used by the typed Publish* methods.
func (bus *EventBus) send(event Event, payload any) {
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
		for _, fn := range snapshot(&bus.hooks.mu, bus.hooks.publish) {
			fn(event, payload)
		}
	default:
		for _, fn := range snapshot(&bus.hooks.mu, bus.hooks.drop) {
			fn(event, payload)
		}
	}
}

func (bus *EventBus) runOnPanic(event Event, payload any, recovered any) {
	for _, fn := range snapshot(&bus.hooks.mu, bus.hooks.panics) {
		func() {
			defer func() { _ = recover() }()
			fn(event, payload, recovered)
		}()
	}
}
