package depgraph

import (
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Node constrains the module types a DepGraph can hold.
type Node interface {
	*InterimModule | *Module
}

// DepGraph is an immutable mapping from ModuleKey to module node with a
// fixed iteration order. For pruned graphs the order is the BFS order from
// the root over the rewritten edges; for un-pruned graphs it is discovery
// order.
type DepGraph[M Node] struct {
	modules map[ModuleKey]M
	order   []ModuleKey
}

// NewDepGraph builds a graph from the given order and nodes. Every key in
// order must be present in modules and vice versa, and the root key must be
// present.
func NewDepGraph[M Node](order []ModuleKey, modules map[ModuleKey]M) (*DepGraph[M], error) {
	if len(order) != len(modules) {
		return nil, fmt.Errorf("graph order lists %d modules but %d were given", len(order), len(modules))
	}
	seen := make(map[ModuleKey]bool, len(order))
	for _, k := range order {
		if _, ok := modules[k]; !ok || seen[k] {
			return nil, fmt.Errorf("graph order entry %s is missing or duplicated", k)
		}
		seen[k] = true
	}
	if _, ok := modules[RootKey]; !ok {
		return nil, fmt.Errorf("graph has no root module")
	}
	return &DepGraph[M]{
		modules: maps.Clone(modules),
		order:   slices.Clone(order),
	}, nil
}

// Get returns the node for key.
func (g *DepGraph[M]) Get(key ModuleKey) (M, bool) {
	m, ok := g.modules[key]
	return m, ok
}

// Root returns the root module node.
func (g *DepGraph[M]) Root() M {
	return g.modules[RootKey]
}

// Len returns the number of modules.
func (g *DepGraph[M]) Len() int {
	return len(g.order)
}

// Keys returns the module keys in graph order.
func (g *DepGraph[M]) Keys() []ModuleKey {
	return slices.Clone(g.order)
}

// All iterates over the modules in graph order.
func (g *DepGraph[M]) All() iter.Seq2[ModuleKey, M] {
	return func(yield func(ModuleKey, M) bool) {
		for _, k := range g.order {
			if !yield(k, g.modules[k]) {
				return
			}
		}
	}
}

// ByName returns every key in the graph for the named module, in graph order.
func (g *DepGraph[M]) ByName(name string) []ModuleKey {
	var keys []ModuleKey
	for _, k := range g.order {
		if k.Name == name {
			keys = append(keys, k)
		}
	}
	return keys
}
