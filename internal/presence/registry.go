// Package presence tracks which users hold a live real-time connection.
package presence

import (
	"sync"

	"inkwell/internal/observability"
)

// Registry maps a user to the connection that most recently authenticated.
// A later registration silently replaces the earlier one.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint]string)}
}

// Register binds userID to connID.
func (r *Registry) Register(userID uint, connID string) {
	r.mu.Lock()
	r.conns[userID] = connID
	n := len(r.conns)
	r.mu.Unlock()
	observability.OnlineUsers.Set(float64(n))
}

// Unregister removes the user's mapping. It is a no-op when absent.
func (r *Registry) Unregister(userID uint) {
	r.mu.Lock()
	delete(r.conns, userID)
	n := len(r.conns)
	r.mu.Unlock()
	observability.OnlineUsers.Set(float64(n))
}

// Lookup returns the connection registered for userID.
func (r *Registry) Lookup(userID uint) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.conns[userID]
	return connID, ok
}

// Online returns the ids of every registered user.
func (r *Registry) Online() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}
