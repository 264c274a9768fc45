package graph

import (
	"fmt"
	"slices"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/selection/version"
)

// Build constructs a Graph from a resolution. discovered is the graph as
// discovery produced it, before selection rewrote any edge; it is where the
// original version requests are read from. overrides are the root's.
func Build(
	discovered *depgraph.DepGraph[*depgraph.InterimModule],
	resolved *depgraph.DepGraph[*depgraph.Module],
	overrides map[string]depgraph.Override,
) *Graph {
	g := &Graph{
		Root:    depgraph.RootKey,
		Modules: make(map[ModuleKey]*Node, resolved.Len()),
		order:   resolved.Keys(),
	}

	requests := collectRequests(discovered)

	for key, m := range resolved.All() {
		node := &Node{
			Key:               key,
			Dependencies:      make([]ModuleKey, 0, len(m.Deps)),
			RequestedVersions: make(map[ModuleKey]string),
			IsRoot:            key == depgraph.RootKey,
		}
		for _, dep := range m.Deps {
			node.Dependencies = append(node.Dependencies, dep.Key)
		}
		node.Selection = buildSelectionInfo(key, requests[key.Name], overrides[key.Name], resolved)
		g.Modules[key] = node
	}

	for key, m := range resolved.All() {
		declared, _ := discovered.Get(key)
		for _, dep := range m.Deps {
			depNode, ok := g.Modules[dep.Key]
			if !ok {
				continue
			}
			depNode.Dependents = append(depNode.Dependents, key)
			if declared != nil {
				for _, spec := range declared.Deps {
					if spec.RepoName == dep.RepoName {
						depNode.RequestedVersions[key] = spec.Version
					}
				}
			}
		}
	}

	return g
}

// collectRequests maps module name -> requested version -> requesters, in
// discovery order.
func collectRequests(discovered *depgraph.DepGraph[*depgraph.InterimModule]) map[string]map[string][]ModuleKey {
	requests := make(map[string]map[string][]ModuleKey)
	for key, m := range discovered.All() {
		for _, spec := range m.Deps {
			if requests[spec.Name] == nil {
				requests[spec.Name] = make(map[string][]ModuleKey)
			}
			requests[spec.Name][spec.Version] = append(requests[spec.Name][spec.Version], key)
		}
	}
	return requests
}

func buildSelectionInfo(key ModuleKey, requested map[string][]ModuleKey, override depgraph.Override, resolved *depgraph.DepGraph[*depgraph.Module]) *SelectionInfo {
	info := &SelectionInfo{SelectedVersion: key.Version}
	if key == depgraph.RootKey {
		info.Strategy = StrategyRoot
		info.DecidingFactor = "root module"
		return info
	}

	versions := make([]string, 0, len(requested))
	for v := range requested {
		versions = append(versions, v)
	}
	version.Sort(versions)

	coexisting := resolved.ByName(key.Name)
	selectedBy := func(v string) bool { return v == key.Version }
	rejection := "lower version (the highest requested version wins)"

	switch o := override.(type) {
	case depgraph.SingleVersionOverride:
		info.Strategy = StrategySingleVersion
		info.DecidingFactor = fmt.Sprintf("single_version_override pins version %s", o.Version)
		if o.Version == "" {
			info.Strategy = StrategyHighest
			info.DecidingFactor = "single_version_override without a version; highest requested version wins"
		}
		rejection = "replaced by the single_version_override"
	case depgraph.MultipleVersionOverride:
		info.Strategy = StrategyMultipleVersion
		info.DecidingFactor = fmt.Sprintf("multiple_version_override allows %v; requests resolve to the nearest allowed version at or above them", o.Versions)
		// A request is served by this node when its nearest allowed
		// version is the selected one.
		allowed := slices.Clone(o.Versions)
		version.Sort(allowed)
		selectedBy = func(v string) bool {
			target, ok := version.Ceiling(allowed, v)
			return ok && target == key.Version
		}
		rejection = "served by another allowed version"
	case nil:
		info.Strategy = StrategyHighest
		switch {
		case len(coexisting) > 1:
			info.DecidingFactor = "highest version within its compatibility level"
		case len(versions) <= 1:
			info.DecidingFactor = "only version requested"
		default:
			info.DecidingFactor = "highest version among candidates"
		}
	default:
		info.Strategy = StrategyNonRegistry
		info.DecidingFactor = depgraph.OverrideKind(o) + " replaces every requested version"
		selectedBy = func(string) bool { return true }
	}

	for _, v := range versions {
		c := VersionCandidate{
			Version:     v,
			RequestedBy: requested[v],
			Selected:    selectedBy(v),
		}
		if !c.Selected {
			c.RejectionReason = rejection
		}
		info.Candidates = append(info.Candidates, c)
	}
	return info
}
