package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultBuffer = 256

// Hub decouples publishers from sinks through a buffered channel. Publish
// never blocks: when the buffer is full the event is dropped and counted,
// keeping a stuck sink from stalling the crawl.
type Hub struct {
	ch      chan Event
	sinks   []Sink
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewHub starts a hub dispatching to sinks.
func NewHub(sinks ...Sink) *Hub {
	h := &Hub{
		ch:    make(chan Event, defaultBuffer),
		sinks: sinks,
		done:  make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for ev := range h.ch {
		for _, sink := range h.sinks {
			sink.Observe(ev)
		}
	}
}

// Publish enqueues an event, stamping TS if unset.
func (h *Hub) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	select {
	case h.ch <- ev:
	default:
		h.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded due to a full buffer.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close drains the buffer and stops dispatch. Publish after Close panics;
// callers stop publishing first.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.ch)
		<-h.done
	})
}
