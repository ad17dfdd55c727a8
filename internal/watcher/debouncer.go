package watcher

import (
	"sync"
	"time"
)

// BatchDebouncer collects change events and delivers them as one batch
// once no new event arrived for the delay.
//
// Events for the same path are merged: create followed by delete drops the
// path, delete followed by create is a modify, create followed by modify
// stays a create, and otherwise the latest event wins. A batch lists paths
// in the order they first changed.
type BatchDebouncer struct {
	delay time.Duration
	emit  func([]Event)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	order   []string
	pending map[string]Event
}

// NewBatchDebouncer creates a debouncer delivering batches to emit
func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{
		delay:   delay,
		emit:    emit,
		pending: make(map[string]Event),
	}
}

// Add queues an event and restarts the quiet period
func (b *BatchDebouncer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, seen := b.pending[event.Path]
	switch {
	case !seen:
		b.order = append(b.order, event.Path)
		b.pending[event.Path] = event
	case prev.Type == EventCreate && event.Type == EventDelete:
		b.drop(event.Path)
	case prev.Type == EventDelete && event.Type == EventCreate:
		event.Type = EventModify
		b.pending[event.Path] = event
	case prev.Type == EventCreate && event.Type == EventModify:
		event.Type = EventCreate
		b.pending[event.Path] = event
	default:
		b.pending[event.Path] = event
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() {
		b.fire(gen)
	})
}

// Cancel discards pending events
func (b *BatchDebouncer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stop()
	b.order = nil
	b.pending = make(map[string]Event)
}

// Flush delivers pending events immediately
func (b *BatchDebouncer) Flush() {
	b.mu.Lock()
	b.stop()
	events := b.take()
	b.mu.Unlock()

	b.deliver(events)
}

// EventCount returns the number of pending paths
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Pending returns a copy of the queued events in batch order
func (b *BatchDebouncer) Pending() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, len(b.order))
	for _, p := range b.order {
		out = append(out, b.pending[p])
	}
	return out
}

// fire runs on the timer goroutine; a timer superseded by a later Add,
// Cancel or Flush finds a newer generation and does nothing
func (b *BatchDebouncer) fire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	events := b.take()
	b.mu.Unlock()

	b.deliver(events)
}

func (b *BatchDebouncer) stop() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}

func (b *BatchDebouncer) take() []Event {
	events := make([]Event, 0, len(b.order))
	for _, p := range b.order {
		events = append(events, b.pending[p])
	}
	b.order = nil
	b.pending = make(map[string]Event)
	return events
}

func (b *BatchDebouncer) drop(path string) {
	delete(b.pending, path)
	for i, p := range b.order {
		if p == path {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

func (b *BatchDebouncer) deliver(events []Event) {
	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}
