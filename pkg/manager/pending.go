package manager

import (
	"sort"
	"sync"
)

// pendingRegistry tracks in-flight requests across all connections. Entries
// are added when a request is dispatched and removed when its response
// arrives, the call fails, or the request is cancelled.
type pendingRegistry struct {
	mu   sync.RWMutex
	byID map[string]PendingRequest
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{byID: make(map[string]PendingRequest)}
}

func (r *pendingRegistry) add(p PendingRequest) {
	r.mu.Lock()
	r.byID[p.RequestID] = p
	r.mu.Unlock()
}

func (r *pendingRegistry) remove(requestID string) {
	r.mu.Lock()
	delete(r.byID, requestID)
	r.mu.Unlock()
}

func (r *pendingRegistry) get(requestID string) (PendingRequest, bool) {
	r.mu.RLock()
	p, ok := r.byID[requestID]
	r.mu.RUnlock()
	return p, ok
}

func (r *pendingRegistry) list() []PendingRequest {
	r.mu.RLock()
	out := make([]PendingRequest, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// removeConnection drops every pending entry belonging to one connection.
// Called when the connection is disconnected or its transport is replaced.
func (r *pendingRegistry) removeConnection(connectionID string) {
	r.mu.Lock()
	for id, p := range r.byID {
		if p.ConnectionID == connectionID {
			delete(r.byID, id)
		}
	}
	r.mu.Unlock()
}
