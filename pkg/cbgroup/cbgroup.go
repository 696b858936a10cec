// Package cbgroup allocates named mutually-exclusive execution groups.
// Callbacks run through the same group never overlap; callbacks in
// different groups may run concurrently.
package cbgroup

import (
	"sync"
)

// Group serializes the callbacks run through it.
type Group struct {
	name string
	mu   sync.Mutex
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Run executes fn while holding the group.
func (g *Group) Run(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

// Allocator hands out groups.
type Allocator interface {
	MutuallyExclusive(name string) *Group
}

// Registry is the default Allocator. It returns the same group for the
// same name so repeated init cycles reuse their groups.
type Registry struct {
	mu     sync.Mutex
	groups map[string]*Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*Group)}
}

func (r *Registry) MutuallyExclusive(name string) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[name]; ok {
		return g
	}
	g := &Group{name: name}
	r.groups[name] = g
	return g
}

// Len returns the number of allocated groups.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}
