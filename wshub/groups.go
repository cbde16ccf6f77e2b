package wshub

import "sync"

// GroupManager partitions identities into named groups for scoped
// broadcast. Groups are created implicitly on first join and removed once
// their last member leaves.
type GroupManager struct {
	mu     sync.RWMutex
	groups map[string]map[string]struct{}
}

func NewGroupManager() *GroupManager {
	return &GroupManager{
		groups: make(map[string]map[string]struct{}),
	}
}

// Join adds an identity to a group. Joining a group the identity is already
// in is a no-op.
func (g *GroupManager) Join(identity, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.groups[group]
	if !ok {
		members = make(map[string]struct{})
		g.groups[group] = members
	}
	members[identity] = struct{}{}
}

// Leave removes an identity from a group. Leaving a group the identity is
// not in is a no-op.
func (g *GroupManager) Leave(identity, group string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	members, ok := g.groups[group]
	if !ok {
		return
	}
	delete(members, identity)
	if len(members) == 0 {
		delete(g.groups, group)
	}
}

// Members returns the identities currently in the group. The result is a
// point-in-time copy; members may join or leave before the caller acts on it.
func (g *GroupManager) Members(group string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := g.groups[group]
	out := make([]string, 0, len(members))
	for identity := range members {
		out = append(out, identity)
	}
	return out
}

// Groups returns the names of all non-empty groups.
func (g *GroupManager) Groups() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.groups))
	for name := range g.groups {
		out = append(out, name)
	}
	return out
}

// RemoveAll removes an identity from every group it is in. Called when a
// connection is unregistered so no group keeps a dangling reference.
func (g *GroupManager) RemoveAll(identity string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, members := range g.groups {
		delete(members, identity)
		if len(members) == 0 {
			delete(g.groups, name)
		}
	}
}
