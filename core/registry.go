package core

import (
	"maps"
	"slices"

	"github.com/encodeous/weft/state"
)

type registration struct {
	node state.Node
	link *Link
	// last route table pushed over link, used to skip unchanged tables
	pushed []byte
}

// Registry maps a router identity to its live control link. It is owned by the controller's dispatch loop.
type Registry struct {
	entries map[state.NodeId]*registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[state.NodeId]*registration)}
}

// Add registers link for node and returns the link it replaced, if any
func (r *Registry) Add(node state.Node, link *Link) *Link {
	var old *Link
	if prev, ok := r.entries[node.Name]; ok && prev.link != link {
		old = prev.link
	}
	r.entries[node.Name] = &registration{node: node, link: link}
	return old
}

// Remove deregisters name only if link is still the current link for it
func (r *Registry) Remove(name state.NodeId, link *Link) bool {
	reg, ok := r.entries[name]
	if !ok || (link != nil && reg.link != link) {
		return false
	}
	delete(r.entries, name)
	return true
}

func (r *Registry) Get(name state.NodeId) (*Link, bool) {
	reg, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return reg.link, true
}

func (r *Registry) Node(name state.NodeId) (state.Node, bool) {
	reg, ok := r.entries[name]
	if !ok {
		return state.Node{}, false
	}
	return reg.node, true
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Names returns the registered identities in sorted order
func (r *Registry) Names() []state.NodeId {
	return slices.Sorted(maps.Keys(r.entries))
}

func (r *Registry) lastPushed(name state.NodeId) []byte {
	if reg, ok := r.entries[name]; ok {
		return reg.pushed
	}
	return nil
}

func (r *Registry) setPushed(name state.NodeId, data []byte) {
	if reg, ok := r.entries[name]; ok {
		reg.pushed = data
	}
}

func (r *Registry) CloseAll() {
	for _, reg := range r.entries {
		_ = reg.link.Close()
	}
	clear(r.entries)
}
