package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls how the dispatcher buffers events.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard and count events when the queue is
	// full instead of waiting for room.
	DropIfFull bool
}

// Dispatcher hands events to a sink on its own goroutine so the auth path
// never waits on audit I/O. A nil *Dispatcher discards everything.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool

	// mu guards queue against a send racing Close.
	mu     sync.RWMutex
	queue  chan Event
	closed bool

	stopped chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan Event, size),
		stopped:    make(chan struct{}),
	}
	go d.deliver()
	return d
}

// deliver runs until the queue is closed and empty.
func (d *Dispatcher) deliver() {
	defer close(d.stopped)
	for ev := range d.queue {
		d.sink.Emit(context.Background(), ev)
	}
}

// Emit queues ev. In blocking mode it gives up when ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	}
}

// Close rejects further events and returns once every queued event has
// reached the sink. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.stopped
}

// Dropped counts events discarded on a full queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Pending reports how many events wait for the sink.
func (d *Dispatcher) Pending() int {
	if d == nil {
		return 0
	}
	return len(d.queue)
}
