package wshub

import (
	"fmt"
	"sync"
)

// Registry is the authoritative store of active connections, keyed by
// identity. Every handle in the registry is Open or Closing; handles are
// removed synchronously when their closure begins.
type Registry struct {
	groups *GroupManager

	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewRegistry(groups *GroupManager) *Registry {
	return &Registry{
		groups:      groups,
		connections: make(map[string]*Connection),
	}
}

// Add registers a handle under its identity.
func (r *Registry) Add(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connections[conn.ID]; ok {
		return fmt.Errorf("failed to register connection %s: %w", conn.ID, ErrDuplicateIdentity)
	}
	r.connections[conn.ID] = conn
	return nil
}

// Remove deletes an identity from the registry and from every group it is
// in. Removing an absent identity is a no-op; the return value reports
// whether anything was removed.
func (r *Registry) Remove(identity string) bool {
	r.mu.Lock()
	_, ok := r.connections[identity]
	delete(r.connections, identity)
	r.mu.Unlock()
	if ok {
		r.groups.RemoveAll(identity)
	}
	return ok
}

// Get returns the handle for an identity.
func (r *Registry) Get(identity string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[identity]
	if !ok {
		return nil, fmt.Errorf("failed to look up connection %s: %w", identity, ErrNotFound)
	}
	return conn, nil
}

// Has reports whether an identity is currently registered.
func (r *Registry) Has(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connections[identity]
	return ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// IDs returns the identities of all registered connections.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.connections))
	for identity := range r.connections {
		out = append(out, identity)
	}
	return out
}

// ListByGroup returns the handles of the group's members at call time.
// Members that disconnect between the group lookup and the registry lookup
// are skipped; callers must tolerate the result going stale.
func (r *Registry) ListByGroup(group string) []*Connection {
	members := r.groups.Members(group)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(members))
	for _, identity := range members {
		if conn, ok := r.connections[identity]; ok {
			out = append(out, conn)
		}
	}
	return out
}
