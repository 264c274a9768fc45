// Package discovery walks the dependency declarations reachable from the
// root module and produces the un-pruned dependency graph.
//
// Discovery is written for the suspend/retry evaluation model: module files
// are obtained through a lookup that may report "not available yet". Run
// then returns every key it could not load at the current depth and the
// caller retries once they exist. Already-loaded modules are served from
// the caller's memoized lookup on the next attempt, so a retry costs one
// map read per known node.
package discovery

import (
	"fmt"

	"github.com/albertocavalcante/go-bzlresolve/check"
	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/selection/version"
)

// LookupFunc returns the module file for key. ok is false when the module
// file is not available yet; err is a persistent loading failure.
type LookupFunc func(key depgraph.ModuleKey) (m *depgraph.InterimModule, ok bool, err error)

// Result is the outcome of one discovery attempt: either the complete
// un-pruned graph or the keys to load before retrying.
type Result struct {
	Graph   *depgraph.DepGraph[*depgraph.InterimModule]
	Pending []depgraph.ModuleKey
}

// Run discovers the graph reachable from root. overrides is the root
// module's override table.
//
// Dependency edges are rewritten as they are read: a dependency on a module
// with a non-registry override points at the empty version, a single version
// override with a version pins the edge, and a dependency on the root
// module's own name points at the root.
func Run(root *depgraph.InterimModule, overrides map[string]depgraph.Override, lookup LookupFunc) (*Result, error) {
	w := &walker{
		rootName:  root.Name,
		overrides: overrides,
		modules:   make(map[depgraph.ModuleKey]*depgraph.InterimModule),
		pending:   make(map[depgraph.ModuleKey]bool),
	}

	rewrittenRoot, err := w.rewrite(root)
	if err != nil {
		return nil, err
	}
	w.add(rewrittenRoot)

	// Breadth-first, one depth at a time, so a suspension reports the whole
	// missing frontier at once.
	frontier := []depgraph.ModuleKey{depgraph.RootKey}
	for len(frontier) > 0 {
		var next []depgraph.ModuleKey
		for _, key := range frontier {
			for _, dep := range w.modules[key].Deps {
				depKey := dep.Key()
				if w.seen(depKey) {
					continue
				}
				m, ok, err := lookup(depKey)
				if err != nil {
					return nil, err
				}
				if !ok {
					w.pending[depKey] = true
					w.pendingOrder = append(w.pendingOrder, depKey)
					continue
				}
				rewritten, err := w.rewrite(m)
				if err != nil {
					return nil, err
				}
				w.add(rewritten)
				next = append(next, depKey)
			}
		}
		frontier = next
	}

	if len(w.pendingOrder) > 0 {
		return &Result{Pending: w.pendingOrder}, nil
	}
	g, err := depgraph.NewDepGraph(w.order, w.modules)
	if err != nil {
		return nil, err
	}
	return &Result{Graph: g}, nil
}

type walker struct {
	rootName     string
	overrides    map[string]depgraph.Override
	modules      map[depgraph.ModuleKey]*depgraph.InterimModule
	order        []depgraph.ModuleKey
	pending      map[depgraph.ModuleKey]bool
	pendingOrder []depgraph.ModuleKey
}

func (w *walker) seen(key depgraph.ModuleKey) bool {
	_, ok := w.modules[key]
	return ok || w.pending[key]
}

func (w *walker) add(m *depgraph.InterimModule) {
	w.modules[m.Key] = m
	w.order = append(w.order, m.Key)
}

// rewrite validates m and returns a copy with its dependency edges
// rewritten. m itself is never modified.
func (w *walker) rewrite(m *depgraph.InterimModule) (*depgraph.InterimModule, error) {
	if _, err := check.ParsePredicates(m.BazelCompatibility); err != nil {
		return nil, depgraph.Errorf(depgraph.InvalidVersion, "error in module %s: %v", m.Key, err)
	}

	deps := make([]depgraph.DepSpec, len(m.Deps))
	for i, d := range m.Deps {
		if w.rootName != "" && d.Name == w.rootName {
			d.Name, d.Version = depgraph.RootKey.Name, depgraph.RootKey.Version
			deps[i] = d
			continue
		}
		if _, err := version.Parse(d.Version); err != nil {
			return nil, depgraph.Errorf(depgraph.InvalidVersion, "invalid version for dependency %s of %s: %v", d.Name, m.Key, err)
		}
		switch o := w.overrides[d.Name].(type) {
		case nil:
		case depgraph.SingleVersionOverride:
			if o.Version != "" {
				d.Version = o.Version
			}
		default:
			if depgraph.IsNonRegistry(o) {
				d.Version = ""
			}
		}
		deps[i] = d
	}

	out := *m
	out.Deps = deps
	return &out, nil
}

// String summarizes an attempt for logging.
func (r *Result) String() string {
	if r.Graph != nil {
		return fmt.Sprintf("discovered %d modules", r.Graph.Len())
	}
	return fmt.Sprintf("waiting on %d module files", len(r.Pending))
}
