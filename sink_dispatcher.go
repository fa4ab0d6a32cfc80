// sink_dispatcher.go - Producer to consumer notification channel

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

/*
The dispatcher moves notifications from the producer (and setter callers) to
the execution context that owns the surface. Messages carry no frame data:
the consumer reads the current slot when a message is delivered, so a run of
FrameReady messages collapses naturally to "present the latest".

  producer ── Send ──▶ [ bounded FIFO ] ──▶ Drain/Run ──▶ handler (consumer)
*/

package framesink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type MessageKind int

const (
	MsgFrameReady MessageKind = iota
	MsgVisibilityChanged
	MsgRefresh
	MsgSurfaceResized
)

func (k MessageKind) String() string {
	switch k {
	case MsgFrameReady:
		return "frame-ready"
	case MsgVisibilityChanged:
		return "visibility-changed"
	case MsgRefresh:
		return "refresh"
	case MsgSurfaceResized:
		return "surface-resized"
	}
	return "unknown"
}

type Message struct {
	Kind    MessageKind
	Token   uuid.UUID // correlation only, set for MsgFrameReady
	Visible bool      // MsgVisibilityChanged payload
}

type consumerKey struct{}

// ConsumerContext marks ctx as running on the goroutine that owns the
// surface. Work requested with such a context runs synchronously instead of
// being deferred to the next consumer pass.
func ConsumerContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, consumerKey{}, true)
}

func onConsumer(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(consumerKey{}).(bool)
	return v
}

// Dispatcher is a single-consumer FIFO of Messages with a bounded queue.
type Dispatcher struct {
	mu      sync.RWMutex
	closed  bool
	queue   chan Message
	done    chan struct{}
	handler func(context.Context, Message)

	pendingFrames atomic.Int64
	delivered     atomic.Uint64
	dropped       atomic.Uint64
}

func NewDispatcher(depth int, handler func(context.Context, Message)) *Dispatcher {
	if depth <= 0 {
		depth = DEFAULT_QUEUE_DEPTH
	}
	return &Dispatcher{
		queue:   make(chan Message, depth),
		done:    make(chan struct{}),
		handler: handler,
	}
}

// Send queues msg without blocking. It fails with ErrChannelClosed after
// Close and with ErrQueueFull when the consumer has fallen behind.
func (d *Dispatcher) Send(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrChannelClosed
	}
	if msg.Kind == MsgFrameReady {
		d.pendingFrames.Add(1)
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		if msg.Kind == MsgFrameReady {
			d.pendingFrames.Add(-1)
		}
		return ErrQueueFull
	}
}

// Drain delivers the messages queued at the time of the call and returns how
// many were delivered. Messages sent by the handler itself wait for the next
// pass.
func (d *Dispatcher) Drain(ctx context.Context) int {
	ctx = ConsumerContext(ctx)
	n := 0
	for budget := len(d.queue); budget > 0; budget-- {
		if d.isClosed() {
			return n
		}
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
			n++
		default:
			return n
		}
	}
	return n
}

// Run delivers messages until ctx is cancelled or the dispatcher is closed.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx = ConsumerContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return nil
		case msg := <-d.queue:
			if d.isClosed() {
				d.forget(msg)
				return nil
			}
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if msg.Kind == MsgFrameReady {
		d.pendingFrames.Add(-1)
	}
	d.delivered.Add(1)
	if d.handler != nil {
		d.handler(ctx, msg)
	}
}

func (d *Dispatcher) forget(msg Message) {
	if msg.Kind == MsgFrameReady {
		d.pendingFrames.Add(-1)
	}
	d.dropped.Add(1)
}

// Close refuses further sends and drops whatever is still queued. Safe to
// call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	for {
		select {
		case msg := <-d.queue:
			d.forget(msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// PendingFrames is the number of FrameReady messages sent but not yet
// delivered or dropped.
func (d *Dispatcher) PendingFrames() int {
	return int(d.pendingFrames.Load())
}

func (d *Dispatcher) Queued() int {
	return len(d.queue)
}

func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}

func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}
