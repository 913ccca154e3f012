// Package presence tracks which live connections belong to which account.
package presence

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrAlreadyBound   = errors.New("connection already bound to another identity")
	ErrInvalidBinding = errors.New("connection id and identity are required")
)

// Registry maps connection ids to identities and back. A connection has at
// most one identity; an identity may own many connections.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]string
	byID   map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]string),
		byID:   make(map[string]map[string]struct{}),
	}
}

// Bind associates connID with identity. Rebinding the same pair is a no-op.
func (r *Registry) Bind(connID, identity string) error {
	if connID == "" || identity == "" {
		return ErrInvalidBinding
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.byConn[connID]; ok {
		if cur == identity {
			return nil
		}
		return ErrAlreadyBound
	}

	r.byConn[connID] = identity
	conns, ok := r.byID[identity]
	if !ok {
		conns = make(map[string]struct{})
		r.byID[identity] = conns
	}
	conns[connID] = struct{}{}
	return nil
}

func (r *Registry) Unbind(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)

	conns := r.byID[identity]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byID, identity)
	}
}

// ConnectionsFor returns a sorted copy of the connection ids bound to identity.
func (r *Registry) ConnectionsFor(identity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byID[identity]
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) IdentityOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byConn[connID]
	return identity, ok
}

func (r *Registry) Online(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID[identity]) > 0
}

// Len reports the number of distinct online identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}
