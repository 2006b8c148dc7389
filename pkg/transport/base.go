package transport

import (
	"context"
	"sync"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

// base provides the request/response correlation shared by all transports:
// a pending-request table keyed by stringified id, resolved when the
// matching response arrives, and failed wholesale when the channel closes.
type base struct {
	mu      sync.Mutex
	kind    Kind
	state   State
	pending map[string]chan *protocol.Response

	done     chan struct{}
	downOnce sync.Once
	downErr  error
}

func newBase(kind Kind) base {
	return base{
		kind:    kind,
		state:   StateDisconnected,
		pending: make(map[string]chan *protocol.Response),
		done:    make(chan struct{}),
	}
}

// Kind returns the transport kind.
func (b *base) Kind() Kind {
	return b.kind
}

// State returns the current transport state.
func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// register reserves a response slot for the given request id.
func (b *base) register(id interface{}) chan *protocol.Response {
	ch := make(chan *protocol.Response, 1)
	b.mu.Lock()
	b.pending[protocol.IDKey(id)] = ch
	b.mu.Unlock()
	return ch
}

func (b *base) unregister(id interface{}) {
	b.mu.Lock()
	delete(b.pending, protocol.IDKey(id))
	b.mu.Unlock()
}

// resolve delivers a response to the waiter registered for its id.
// Responses with no registered waiter are dropped.
func (b *base) resolve(resp *protocol.Response) bool {
	key := protocol.IDKey(resp.ID)
	b.mu.Lock()
	ch, ok := b.pending[key]
	if ok {
		delete(b.pending, key)
	}
	b.mu.Unlock()
	if ok {
		ch <- resp
	}
	return ok
}

// goDown marks the transport dead exactly once. Every waiter currently
// blocked in await observes err; later sends fail at the state check.
func (b *base) goDown(err error) {
	b.downOnce.Do(func() {
		b.mu.Lock()
		b.downErr = err
		if err != nil {
			b.state = StateError
		} else {
			b.state = StateDisconnected
		}
		b.pending = make(map[string]chan *protocol.Response)
		b.mu.Unlock()
		close(b.done)
	})
}

// await blocks until the response arrives, the context expires, or the
// transport goes down.
func (b *base) await(ctx context.Context, id interface{}, ch chan *protocol.Response) (*protocol.Response, error) {
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		b.unregister(id)
		return nil, ctx.Err()
	case <-b.done:
		b.mu.Lock()
		err := b.downErr
		b.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, mcperrors.ConnectionLost(string(b.kind), "await_response", nil)
	}
}

// requireConnected returns a typed error unless the transport is connected.
func (b *base) requireConnected(operation string) error {
	if b.State() != StateConnected {
		return mcperrors.TransportError(string(b.kind), operation, nil).
			WithDetail("transport is not connected")
	}
	return nil
}
