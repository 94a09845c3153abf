package hub

import "sync"

type set map[string]struct{}

// GroupIndex tracks named groups of connections used for fan-out delivery.
// Membership is tracked both ways so a disconnecting connection can be dropped
// from every group it joined without scanning the whole index.
type GroupIndex struct {
	mu     sync.RWMutex
	groups map[string]set // group → connIDs
	byConn map[string]set // connID → groups
}

func NewGroupIndex() *GroupIndex {
	return &GroupIndex{
		groups: make(map[string]set),
		byConn: make(map[string]set),
	}
}

// Join adds the connection to the group. Idempotent.
func (g *GroupIndex) Join(connID, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.groups[group] == nil {
		g.groups[group] = make(set)
	}
	g.groups[group][connID] = struct{}{}

	if g.byConn[connID] == nil {
		g.byConn[connID] = make(set)
	}
	g.byConn[connID][group] = struct{}{}
}

// Leave removes the connection from the group. Idempotent; empty groups are
// pruned so the index does not accumulate dead room keys.
func (g *GroupIndex) Leave(connID, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(connID, group)
}

func (g *GroupIndex) leaveLocked(connID, group string) {
	if members, ok := g.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(g.groups, group)
		}
	}
	if groups, ok := g.byConn[connID]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(g.byConn, connID)
		}
	}
}

// MembersOf returns the connection ids currently in the group.
func (g *GroupIndex) MembersOf(group string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := g.groups[group]
	if len(members) == 0 {
		return nil
	}
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}

// DropConnection removes the connection from every group it belongs to.
func (g *GroupIndex) DropConnection(connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for group := range g.byConn[connID] {
		g.leaveLocked(connID, group)
	}
}

// GroupCount reports how many non-empty groups exist.
func (g *GroupIndex) GroupCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.groups)
}
