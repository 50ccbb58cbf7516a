// Package testbus runs a real event bus for tests and records what was
// published on it.
package testbus

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/kiln/internal/core/eventbus"
)

// Published is one recorded event.
type Published struct {
	Event   eventbus.Event
	Payload any
}

// Bus is a started EventBus that records every successfully enqueued event.
type Bus struct {
	*eventbus.EventBus

	mu  sync.Mutex
	log []Published
}

// New starts a bus that stops when the test ends.
func New(t *testing.T) *Bus {
	t.Helper()

	tb := &Bus{EventBus: eventbus.New(256)}
	tb.OnPublish(func(event eventbus.Event, payload any) {
		tb.mu.Lock()
		tb.log = append(tb.log, Published{Event: event, Payload: payload})
		tb.mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		tb.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	return tb
}

// Events returns everything recorded so far.
func (tb *Bus) Events() []Published {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return slices.Clone(tb.log)
}

// Payloads returns the payloads recorded for event, oldest first.
func (tb *Bus) Payloads(event eventbus.Event) []any {
	var out []any
	for _, p := range tb.Events() {
		if p.Event == event {
			out = append(out, p.Payload)
		}
	}
	return out
}

// WaitFor polls until event has been recorded or timeout passes.
func (tb *Bus) WaitFor(event eventbus.Event, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if len(tb.Payloads(event)) > 0 {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (tb *Bus) AssertPublished(t *testing.T, event eventbus.Event) {
	t.Helper()
	assert.True(t, tb.WaitFor(event, 500*time.Millisecond), "event %q was not published", event)
}
