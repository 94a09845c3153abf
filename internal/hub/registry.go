package hub

import (
	"strings"
	"sync"
)

// Registry owns the authoritative mapping between connections, user ids and
// roles. At most one live connection per user: registering a user who already
// has a connection moves the mapping to the new connection and the old one
// becomes unreachable by user id (it still exists at the transport layer until
// it disconnects on its own).
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID → connID
	byConn map[string]string // connID → userID
	roles  map[string]string // userID → role
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
		roles:  make(map[string]string),
	}
}

// Register inserts or overwrites all three indices. Always succeeds. If the
// user already had a connection, that connection's reverse entry is discarded
// so its eventual disconnect cannot evict the new mapping.
func (r *Registry) Register(connID, userID, role string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[userID]; ok && old != connID {
		delete(r.byConn, old)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
	r.roles[userID] = role
}

// Unregister removes the connection from all three indices. Unknown connection
// ids are a no-op; in particular an orphaned connection (replaced by a newer
// one for the same user) unregisters without touching the live mapping.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	delete(r.byUser, userID)
	delete(r.roles, userID)
}

// Resolve returns the current connection for a user.
func (r *Registry) Resolve(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byUser[userID]
	return connID, ok
}

// UserOf is the reverse lookup.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[connID]
	return userID, ok
}

func (r *Registry) RoleOf(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[userID]
	return role, ok
}

// CountByRole counts registered users whose role matches case-insensitively.
func (r *Registry) CountByRole(role string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, have := range r.roles {
		if strings.EqualFold(have, role) {
			n++
		}
	}
	return n
}

// Size returns the number of registered users.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
