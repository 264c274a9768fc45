package selection

import (
	"cmp"
	"maps"
	"slices"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/selection/version"
)

type unprunedGraph = depgraph.DepGraph[*depgraph.InterimModule]

// Run executes version selection.
//
// The algorithm:
//  1. Compute allowed version sets for multiple-version overrides
//  2. Compute the selection group of every module
//  3. Select the highest version of each group
//  4. Enumerate resolution strategies (for max_compatibility_level)
//  5. Walk the graph from the root with each strategy until one succeeds
//
// Run is deterministic: the same graph and overrides always produce the same
// result, in the same order.
func Run(graph *unprunedGraph, overrides map[string]depgraph.Override) (*Result, error) {
	allowedVersionSets, err := computeAllowedVersionSets(overrides, graph)
	if err != nil {
		return nil, err
	}

	groups := make(map[depgraph.ModuleKey]Group, graph.Len())
	for key, module := range graph.All() {
		groups[key] = computeGroup(module, allowedVersionSets)
	}

	selected := make(map[Group]string)
	for key, group := range groups {
		existing, ok := selected[group]
		if !ok || version.Compare(key.Version, existing) > 0 {
			selected[group] = key.Version
		}
	}

	var firstErr error
	for _, strategy := range enumerateStrategies(graph, groups, selected) {
		result, err := tryStrategy(graph, overrides, groups, strategy)
		if err == nil {
			return result, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// tryStrategy walks the graph with one resolution strategy and, if the walk
// succeeds, also rewrites the un-pruned graph with it.
func tryStrategy(
	graph *unprunedGraph,
	overrides map[string]depgraph.Override,
	groups map[depgraph.ModuleKey]Group,
	strategy resolutionStrategy,
) (*Result, error) {
	w := &walker{graph: graph, overrides: overrides, groups: groups}
	resolved, err := w.walk(strategy)
	if err != nil {
		return nil, err
	}

	modules := make(map[depgraph.ModuleKey]*depgraph.InterimModule, graph.Len())
	for key, m := range graph.All() {
		out := *m
		out.Deps = make([]depgraph.DepSpec, len(m.Deps))
		for i, dep := range m.Deps {
			dep.Version = strategy(dep)
			out.Deps[i] = dep
		}
		modules[key] = &out
	}
	unpruned, err := depgraph.NewDepGraph(graph.Keys(), modules)
	if err != nil {
		return nil, err
	}
	return &Result{Resolved: resolved, Unpruned: unpruned}, nil
}

type nameAndCompat struct {
	name        string
	compatLevel int
}

// computeAllowedVersionSets maps (module name, compatibility level) to the
// sorted versions a multiple-version override allows. Every allowed version
// must exist in the graph.
func computeAllowedVersionSets(overrides map[string]depgraph.Override, graph *unprunedGraph) (map[nameAndCompat][]string, error) {
	result := make(map[nameAndCompat][]string)
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		mvo, ok := overrides[name].(depgraph.MultipleVersionOverride)
		if !ok {
			continue
		}
		for _, allowed := range mvo.Versions {
			module, ok := graph.Get(depgraph.ModuleKey{Name: name, Version: allowed})
			if !ok {
				return nil, depgraph.Errorf(depgraph.VersionResolutionFailure,
					"multiple_version_override for module %s contains version %s, but it doesn't exist in the dependency graph",
					name, allowed)
			}
			k := nameAndCompat{name: name, compatLevel: module.CompatibilityLevel}
			result[k] = append(result[k], allowed)
		}
	}
	for k := range result {
		version.Sort(result[k])
	}
	return result, nil
}

// computeGroup returns the selection group of module. Under a multiple
// version override the target is the ceiling of the module's version among
// the allowed ones, empty if it exceeds them all.
func computeGroup(module *depgraph.InterimModule, allowedVersionSets map[nameAndCompat][]string) Group {
	group := Group{ModuleName: module.Key.Name, CompatLevel: module.CompatibilityLevel}
	allowed, ok := allowedVersionSets[nameAndCompat{name: module.Key.Name, compatLevel: module.CompatibilityLevel}]
	if ok {
		group.TargetAllowedVersion, _ = version.Ceiling(allowed, module.Key.Version)
	}
	return group
}

// walker performs the breadth-first walk from the root over rewritten
// edges, checking selection conflicts on every module it reaches.
type walker struct {
	graph     *unprunedGraph
	overrides map[string]depgraph.Override
	groups    map[depgraph.ModuleKey]Group
}

type visited struct {
	key         depgraph.ModuleKey
	compatLevel int
	dependent   depgraph.ModuleKey
}

func (w *walker) walk(strategy resolutionStrategy) (*depgraph.DepGraph[*depgraph.Module], error) {
	byName := make(map[string]visited)
	modules := make(map[depgraph.ModuleKey]*depgraph.Module)
	known := map[depgraph.ModuleKey]bool{depgraph.RootKey: true}
	var order []depgraph.ModuleKey

	type item struct {
		key       depgraph.ModuleKey
		dependent depgraph.ModuleKey
	}
	queue := []item{{key: depgraph.RootKey}}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		old, ok := w.graph.Get(it.key)
		if !ok {
			return nil, depgraph.Errorf(depgraph.VersionResolutionFailure,
				"%s depends on %s, which is not in the dependency graph", it.dependent, it.key)
		}

		deps := make([]depgraph.Dep, len(old.Deps))
		for i, spec := range old.Deps {
			resolved := depgraph.ModuleKey{Name: spec.Name, Version: strategy(spec)}
			if spec.MaxCompatibilityLevel >= 0 {
				if target, ok := w.graph.Get(resolved); ok && target.CompatibilityLevel > spec.MaxCompatibilityLevel {
					return nil, depgraph.Errorf(depgraph.VersionResolutionFailure,
						"%s depends on %s with max_compatibility_level %d, but %s has compatibility level %d which is higher",
						it.key, spec.Name, spec.MaxCompatibilityLevel, resolved, target.CompatibilityLevel)
				}
			}
			deps[i] = depgraph.Dep{RepoName: spec.RepoName, Key: resolved}
		}

		if err := w.visit(it.key, old, it.dependent, byName); err != nil {
			return nil, err
		}

		for _, dep := range deps {
			if !known[dep.Key] {
				known[dep.Key] = true
				queue = append(queue, item{key: dep.Key, dependent: it.key})
			}
		}

		modules[it.key] = depgraph.ResolvedModule(old, deps)
		order = append(order, it.key)
	}

	return depgraph.NewDepGraph(order, modules)
}

// visit checks that module, reached from dependent, does not conflict with
// what was already selected.
func (w *walker) visit(key depgraph.ModuleKey, module *depgraph.InterimModule, dependent depgraph.ModuleKey, byName map[string]visited) error {
	if mvo, ok := w.overrides[key.Name].(depgraph.MultipleVersionOverride); ok {
		if w.groups[key].TargetAllowedVersion == "" {
			return depgraph.Errorf(depgraph.VersionResolutionFailure,
				"%s depends on %s which is not allowed by the multiple_version_override on %s, which allows only %v",
				dependent, key, key.Name, mvo.Versions)
		}
		return nil
	}

	existing, ok := byName[key.Name]
	if ok && existing.compatLevel != module.CompatibilityLevel {
		return depgraph.Errorf(depgraph.VersionResolutionFailure,
			"%s depends on %s with compatibility level %d, but %s depends on %s with compatibility level %d which is different",
			dependent, key, module.CompatibilityLevel, existing.dependent, existing.key, existing.compatLevel)
	}
	byName[key.Name] = visited{key: key, compatLevel: module.CompatibilityLevel, dependent: dependent}
	return nil
}

// resolutionStrategy maps a dependency spec to the version it resolves to.
type resolutionStrategy func(depgraph.DepSpec) string

// candidate is one version a dependency spec may resolve to under
// max_compatibility_level.
type candidate struct {
	version     string
	compatLevel int
}

// candidatesFor returns, one per compatibility level in
// [target level, max_compatibility_level], the selected versions the spec
// may resolve to, lowest level first.
func candidatesFor(spec depgraph.DepSpec, graph *unprunedGraph, selected map[Group]string) []candidate {
	target, ok := graph.Get(spec.Key())
	if !ok {
		return []candidate{{version: spec.Version}}
	}
	minLevel := target.CompatibilityLevel
	maxLevel := max(minLevel, spec.MaxCompatibilityLevel)

	byLevel := make(map[int]string)
	for group, v := range selected {
		if group.ModuleName != spec.Name || group.CompatLevel < minLevel || group.CompatLevel > maxLevel {
			continue
		}
		if version.Compare(v, spec.Version) < 0 {
			continue
		}
		if existing, ok := byLevel[group.CompatLevel]; !ok || version.Compare(v, existing) < 0 {
			byLevel[group.CompatLevel] = v
		}
	}

	out := make([]candidate, 0, len(byLevel))
	for level, v := range byLevel {
		out = append(out, candidate{version: v, compatLevel: level})
	}
	slices.SortFunc(out, func(a, b candidate) int { return cmp.Compare(a.compatLevel, b.compatLevel) })
	return out
}

// ambiguousSpecs returns the candidates of every distinct dependency spec
// with more than one possible resolution.
func ambiguousSpecs(graph *unprunedGraph, selected map[Group]string) map[depgraph.ModuleKey][]candidate {
	result := make(map[depgraph.ModuleKey][]candidate)
	seen := make(map[depgraph.ModuleKey]bool)
	for _, module := range graph.All() {
		for _, spec := range module.Deps {
			if spec.MaxCompatibilityLevel < 0 || seen[spec.Key()] {
				continue
			}
			seen[spec.Key()] = true
			if c := candidatesFor(spec, graph, selected); len(c) > 1 {
				result[spec.Key()] = c
			}
		}
	}
	return result
}

// enumerateStrategies returns the default strategy when no spec is
// ambiguous, and otherwise one strategy per combination of candidate
// choices, in a deterministic order.
func enumerateStrategies(graph *unprunedGraph, groups map[depgraph.ModuleKey]Group, selected map[Group]string) []resolutionStrategy {
	def := func(spec depgraph.DepSpec) string {
		group, ok := groups[spec.Key()]
		if !ok {
			return spec.Version
		}
		return selected[group]
	}

	ambiguous := ambiguousSpecs(graph, selected)
	if len(ambiguous) == 0 {
		return []resolutionStrategy{def}
	}

	keys := slices.SortedFunc(maps.Keys(ambiguous), depgraph.ModuleKey.Compare)
	combos := cartesianProduct(keys, ambiguous)
	strategies := make([]resolutionStrategy, len(combos))
	for i, combo := range combos {
		strategies[i] = func(spec depgraph.DepSpec) string {
			if v, ok := combo[spec.Key()]; ok {
				return v
			}
			return def(spec)
		}
	}
	return strategies
}

// cartesianProduct expands per-spec candidates into every complete
// assignment of versions.
func cartesianProduct(keys []depgraph.ModuleKey, candidates map[depgraph.ModuleKey][]candidate) []map[depgraph.ModuleKey]string {
	result := []map[depgraph.ModuleKey]string{{}}
	for _, key := range keys {
		var next []map[depgraph.ModuleKey]string
		for _, partial := range result {
			for _, c := range candidates[key] {
				combo := maps.Clone(partial)
				combo[key] = c.version
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}
