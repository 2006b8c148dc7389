package manager

import "sync"

// eventBufferSize is the per-subscriber channel capacity. A subscriber that
// falls more than this far behind loses events rather than stalling the
// manager.
const eventBufferSize = 100

// broadcaster fans lifecycle events out to all subscribers. Delivery is
// non-blocking: a full subscriber channel drops the event and reports it
// through onDrop.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
	onDrop func()
}

func newBroadcaster(onDrop func()) *broadcaster {
	return &broadcaster{
		subs:   make(map[chan Event]struct{}),
		onDrop: onDrop,
	}
}

func (b *broadcaster) subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, eventBufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

func (b *broadcaster) unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		if (<-chan Event)(sub) == ch {
			delete(b.subs, sub)
			close(sub)
			return
		}
	}
}

func (b *broadcaster) publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub <- evt:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub)
		delete(b.subs, sub)
	}
}
