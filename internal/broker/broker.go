package broker

import (
	"context"
	"log/slog"
	"sync"
)

type (
	// Broker is the message queue between the capture engines and the
	// coordinator. Realtime producers (the disk writers) push to
	// ToCoordinator with TrySend and never block; if the channel is full the
	// message is dropped and the producer retries on its next cycle.
	//
	// Notifications raised while already on the coordinator (playlist
	// changes, region visibility, parameter changes) go through Post, which
	// appends to an unbounded FIFO. Posting never blocks the coordinator on
	// its own queue, and the FIFO keeps same-context delivery order: an
	// event posted while another is being dispatched is handled right after
	// it, before the next message from the channel.
	Broker struct {
		ToCoordinator chan any

		mu          sync.Mutex
		pending     []any
		subscribers []func(any)
		dropped     int
	}
)

func New() *Broker {
	return &Broker{
		ToCoordinator: make(chan any, 1024),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// Post queues a notification for same-context delivery
func (b *Broker) Post(ev any) {
	b.mu.Lock()
	b.pending = append(b.pending, ev)
	b.mu.Unlock()
}

// Subscribe registers fn for every delivered message. Subscribers run on
// the coordinator, in registration order.
func (b *Broker) Subscribe(fn func(any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, fn)
}

// Dropped reports how many realtime messages were discarded by Send
func (b *Broker) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Send is TrySend on ToCoordinator that counts drops
func (b *Broker) Send(ev any) bool {
	if TrySend(b.ToCoordinator, ev) {
		return true
	}
	b.mu.Lock()
	b.dropped++
	b.mu.Unlock()
	return false
}

func (b *Broker) deliver(ev any) {
	if fn, ok := ev.(func()); ok {
		fn()
		return
	}
	b.mu.Lock()
	subs := make([]func(any), len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Call runs fn on the coordinator and waits until it returned, including
// the dispatch of every notification fn posted. Only for non-realtime
// callers: the send blocks while the channel is full.
func (b *Broker) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	call := func() {
		defer close(done)
		fn()
		b.Dispatch()
	}
	select {
	case b.ToCoordinator <- call:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch delivers every queued notification, including the ones posted
// by subscribers during delivery.
func (b *Broker) Dispatch() int {
	n := 0
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.mu.Unlock()
			return n
		}
		ev := b.pending[0]
		b.pending[0] = nil
		b.pending = b.pending[1:]
		b.mu.Unlock()

		b.deliver(ev)
		n++
	}
}

// Drain handles everything currently queued without blocking and returns
// the number of delivered messages.
func (b *Broker) Drain() int {
	n := b.Dispatch()
	for {
		select {
		case ev := <-b.ToCoordinator:
			b.deliver(ev)
			n++
			n += b.Dispatch()
		default:
			return n
		}
	}
}

// Run is the coordinator loop. It returns when ctx is done.
func (b *Broker) Run(ctx context.Context) {
	slog.Debug("Coordinator started")
	defer slog.Debug("Coordinator stopped")

	b.Dispatch()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.ToCoordinator:
			b.deliver(ev)
			b.Dispatch()
		}
	}
}
