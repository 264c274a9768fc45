package graph

import (
	"fmt"
	"slices"
	"strings"
)

// maxChains bounds the dependency chains Explain enumerates; dense graphs
// have exponentially many.
const maxChains = 32

// Get returns the node for a module key, or nil if not found.
func (g *Graph) Get(key ModuleKey) *Node {
	return g.Modules[key]
}

// Keys returns the module keys in BFS order from the root.
func (g *Graph) Keys() []ModuleKey {
	return slices.Clone(g.order)
}

// ByName returns every node of the named module in graph order. Only a
// multiple_version_override produces more than one.
func (g *Graph) ByName(name string) []*Node {
	var nodes []*Node
	for _, key := range g.order {
		if key.Name == name {
			nodes = append(nodes, g.Modules[key])
		}
	}
	return nodes
}

// DirectDeps returns the direct dependencies of a module.
func (g *Graph) DirectDeps(key ModuleKey) []ModuleKey {
	if node := g.Modules[key]; node != nil {
		return node.Dependencies
	}
	return nil
}

// Dependents returns modules that directly depend on the given module.
func (g *Graph) Dependents(key ModuleKey) []ModuleKey {
	if node := g.Modules[key]; node != nil {
		return node.Dependents
	}
	return nil
}

// TransitiveDeps returns all transitive dependencies of a module in
// breadth-first order.
func (g *Graph) TransitiveDeps(key ModuleKey) []ModuleKey {
	return g.reach(key, func(n *Node) []ModuleKey { return n.Dependencies })
}

// TransitiveDependents returns all modules that transitively depend on the
// given module, closest first.
func (g *Graph) TransitiveDependents(key ModuleKey) []ModuleKey {
	return g.reach(key, func(n *Node) []ModuleKey { return n.Dependents })
}

func (g *Graph) reach(key ModuleKey, next func(*Node) []ModuleKey) []ModuleKey {
	result := make([]ModuleKey, 0)
	visited := map[ModuleKey]bool{key: true}
	queue := []ModuleKey{key}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Modules[current]
		if node == nil {
			continue
		}
		for _, k := range next(node) {
			if !visited[k] {
				visited[k] = true
				result = append(result, k)
				queue = append(queue, k)
			}
		}
	}
	return result
}

// Path finds the shortest dependency path from one module to another.
// Returns nil if no path exists.
func (g *Graph) Path(from, to ModuleKey) []ModuleKey {
	if from == to {
		return []ModuleKey{from}
	}

	type queueItem struct {
		key  ModuleKey
		path []ModuleKey
	}

	visited := map[ModuleKey]bool{from: true}
	queue := []queueItem{{key: from, path: []ModuleKey{from}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		node := g.Modules[current.key]
		if node == nil {
			continue
		}

		for _, dep := range node.Dependencies {
			if dep == to {
				return append(slices.Clone(current.path), dep)
			}
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, queueItem{key: dep, path: append(slices.Clone(current.path), dep)})
			}
		}
	}

	return nil
}

// AllPaths finds simple dependency paths from one module to another, at
// most limit of them.
func (g *Graph) AllPaths(from, to ModuleKey, limit int) [][]ModuleKey {
	var result [][]ModuleKey
	g.findAllPaths(from, to, []ModuleKey{from}, make(map[ModuleKey]bool), limit, &result)
	return result
}

func (g *Graph) findAllPaths(current, target ModuleKey, path []ModuleKey, visited map[ModuleKey]bool, limit int, result *[][]ModuleKey) {
	if len(*result) >= limit {
		return
	}
	if current == target {
		*result = append(*result, slices.Clone(path))
		return
	}

	visited[current] = true
	defer func() { visited[current] = false }()

	node := g.Modules[current]
	if node == nil {
		return
	}
	for _, dep := range node.Dependencies {
		if !visited[dep] {
			g.findAllPaths(dep, target, append(path, dep), visited, limit, result)
		}
	}
}

// Explain explains why each version of the named module in the graph was
// selected.
func (g *Graph) Explain(moduleName string) ([]*Explanation, error) {
	nodes := g.ByName(moduleName)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("module %q not found in graph", moduleName)
	}

	out := make([]*Explanation, 0, len(nodes))
	for _, node := range nodes {
		explanation := &Explanation{
			Module:    node.Key,
			Selection: node.Selection,
		}
		for _, path := range g.AllPaths(g.Root, node.Key, maxChains) {
			chain := DependencyChain{Path: path}
			if len(path) >= 2 {
				chain.RequestedVersion = node.RequestedVersions[path[len(path)-2]]
			}
			explanation.DependencyChains = append(explanation.DependencyChains, chain)
		}
		explanation.RequestSummary = buildRequestSummary(node)
		out = append(out, explanation)
	}
	return out, nil
}

func buildRequestSummary(node *Node) string {
	if node.Selection == nil || len(node.Selection.Candidates) == 0 {
		return fmt.Sprintf("%s is at version %s", node.Key.Name, node.Key.Version)
	}

	parts := make([]string, 0, len(node.Selection.Candidates))
	for _, candidate := range node.Selection.Candidates {
		requesters := make([]string, len(candidate.RequestedBy))
		for i, r := range candidate.RequestedBy {
			requesters[i] = r.String()
		}
		part := fmt.Sprintf("  %s requested by: %s", candidate.Version, strings.Join(requesters, ", "))
		if candidate.Selected {
			part += " [SELECTED]"
		}
		parts = append(parts, part)
	}

	return fmt.Sprintf("%s version selection:\n%s\nStrategy: %s (%s)",
		node.Key.Name,
		strings.Join(parts, "\n"),
		node.Selection.Strategy,
		node.Selection.DecidingFactor,
	)
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Stats {
	stats := Stats{TotalModules: len(g.Modules)}
	if root := g.Modules[g.Root]; root != nil {
		stats.DirectDependencies = len(root.Dependencies)
	}
	stats.TransitiveDependencies = max(0, stats.TotalModules-stats.DirectDependencies-1)
	stats.MaxDepth = g.maxDepth()
	return stats
}

// maxDepth is the longest cycle-free path from the root.
func (g *Graph) maxDepth() int {
	depths := make(map[ModuleKey]int)
	onPath := make(map[ModuleKey]bool)
	var deepest int

	var dfs func(key ModuleKey, depth int)
	dfs = func(key ModuleKey, depth int) {
		if onPath[key] {
			return
		}
		if d, ok := depths[key]; ok && d >= depth {
			return
		}
		depths[key] = depth
		deepest = max(deepest, depth)

		node := g.Modules[key]
		if node == nil {
			return
		}
		onPath[key] = true
		for _, dep := range node.Dependencies {
			dfs(dep, depth+1)
		}
		delete(onPath, key)
	}

	dfs(g.Root, 0)
	return deepest
}
