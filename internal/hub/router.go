package hub

import (
	"log/slog"
	"sync"
)

// Sink is the write side of one transport session. Send must not block the
// caller; implementations queue the frame and drop it if the session cannot
// keep up.
type Sink interface {
	Send(event string, payload any) error
}

// Router resolves logical delivery targets (one user, many users, a role,
// a group, everyone) into concrete connections and performs the send. All
// sends are fire-and-forget: a missing destination is a normal outcome
// reported in the return value, never an error.
type Router struct {
	registry *Registry
	groups   *GroupIndex
	log      *slog.Logger

	mu    sync.RWMutex
	conns map[string]Sink // connID → live session
}

func NewRouter(registry *Registry, groups *GroupIndex, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		registry: registry,
		groups:   groups,
		log:      log,
		conns:    make(map[string]Sink),
	}
}

// Attach makes a connection addressable. Called by the lifecycle on connect.
func (rt *Router) Attach(connID string, sink Sink) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.conns[connID] = sink
}

// Detach forgets a connection. Idempotent.
func (rt *Router) Detach(connID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.conns, connID)
}

// SendToConn delivers to a single connection id. Returns whether a live
// session was found.
func (rt *Router) SendToConn(connID, event string, payload any) bool {
	rt.mu.RLock()
	sink, ok := rt.conns[connID]
	rt.mu.RUnlock()
	if !ok {
		return false
	}
	if err := sink.Send(event, payload); err != nil {
		rt.log.Debug("send failed", "conn_id", connID, "event", event, "err", err)
	}
	return true
}

// SendToUser delivers to the user's current connection. Returns false when the
// user has no live connection.
func (rt *Router) SendToUser(userID, event string, payload any) bool {
	connID, ok := rt.registry.Resolve(userID)
	if !ok {
		return false
	}
	return rt.SendToConn(connID, event, payload)
}

// SendToUsers applies SendToUser independently per id. Partial delivery is
// expected; the result maps each user id to its outcome.
func (rt *Router) SendToUsers(userIDs []string, event string, payload any) (map[string]bool, int) {
	results := make(map[string]bool, len(userIDs))
	delivered := 0
	for _, id := range userIDs {
		ok := rt.SendToUser(id, event, payload)
		results[id] = ok
		if ok {
			delivered++
		}
	}
	return results, delivered
}

// SendToRole delivers to the role group and reports the case-insensitive
// registry count for that role. The group key is case-sensitive, so the count
// may exceed the number of connections actually reached when stored roles
// differ in casing.
func (rt *Router) SendToRole(role, event string, payload any) int {
	rt.SendToGroup(RoleGroup(role), event, payload)
	return rt.registry.CountByRole(role)
}

// SendToAll delivers to every live connection and reports the registry size.
func (rt *Router) SendToAll(event string, payload any) int {
	rt.mu.RLock()
	sinks := make(map[string]Sink, len(rt.conns))
	for id, s := range rt.conns {
		sinks[id] = s
	}
	rt.mu.RUnlock()

	for connID, sink := range sinks {
		if err := sink.Send(event, payload); err != nil {
			rt.log.Debug("send failed", "conn_id", connID, "event", event, "err", err)
		}
	}
	return rt.registry.Size()
}

// SendToGroup fans out to every member of the group. Returns the number of
// connections reached.
func (rt *Router) SendToGroup(group, event string, payload any) int {
	return rt.SendToGroupExcept(group, "", event, payload)
}

// SendToGroupExcept fans out to the group, skipping one connection (used for
// room broadcasts that must not echo back to the sender).
func (rt *Router) SendToGroupExcept(group, exceptConnID, event string, payload any) int {
	reached := 0
	for _, connID := range rt.groups.MembersOf(group) {
		if connID == exceptConnID {
			continue
		}
		if rt.SendToConn(connID, event, payload) {
			reached++
		}
	}
	return reached
}
