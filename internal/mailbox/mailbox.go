// Package mailbox is the one permitted channel from background goroutines to
// the display. Producers post events from any goroutine; the display drains
// the mailbox on a timer tick and applies events in arrival order, so display
// state is only ever touched from its own goroutine.
package mailbox

import (
	"context"
	"sync"
	"time"
)

// DefaultTick is the drain interval used when Run is given zero.
const DefaultTick = 100 * time.Millisecond

// Sink applies drained events to the display, one at a time, in order.
type Sink interface {
	Apply(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Apply(e Event) { f(e) }

// Mailbox is a thread-safe FIFO of display events.
type Mailbox struct {
	mu     sync.Mutex
	events []Event
}

func New() *Mailbox {
	return &Mailbox{}
}

// Post appends an event. Safe to call from any goroutine; never blocks.
func (m *Mailbox) Post(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
}

// Drain removes and returns all pending events in arrival order.
func (m *Mailbox) Drain() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == 0 {
		return nil
	}
	out := m.events
	m.events = nil
	return out
}

// Len returns the number of pending events.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// Run drains the mailbox into sink every tick until ctx is cancelled. It runs
// on the caller's goroutine, which becomes the display goroutine. A final
// drain happens on shutdown so queued events are not lost.
func (m *Mailbox) Run(ctx context.Context, sink Sink, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTick
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, e := range m.Drain() {
				sink.Apply(e)
			}
		case <-ctx.Done():
			for _, e := range m.Drain() {
				sink.Apply(e)
			}
			return
		}
	}
}
