package graph

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

// ModuleKey is depgraph.ModuleKey, aliased for brevity within this package.
type ModuleKey = depgraph.ModuleKey

// Graph is a resolved module dependency graph with reverse edges and the
// version requests that led to each selection.
type Graph struct {
	// Root is the root module of the graph.
	Root ModuleKey

	// Modules contains all nodes in the graph, keyed by ModuleKey.
	Modules map[ModuleKey]*Node

	// order is the BFS order of the resolved graph.
	order []ModuleKey
}

// Node is a module in the dependency graph.
type Node struct {
	Key ModuleKey

	// Dependencies are the direct dependencies of this module, resolved,
	// in declaration order.
	Dependencies []ModuleKey

	// Dependents are modules that directly depend on this one, in graph
	// order.
	Dependents []ModuleKey

	// RequestedVersions maps each dependent to the version it declared.
	RequestedVersions map[ModuleKey]string

	// Selection explains why this version was selected.
	Selection *SelectionInfo

	IsRoot bool
}

// SelectionInfo explains why a particular version was selected.
type SelectionInfo struct {
	Strategy        SelectionStrategy
	SelectedVersion string

	// Candidates are every version of the module some discovered module
	// requested, in version order.
	Candidates []VersionCandidate

	// DecidingFactor explains what determined the selection.
	DecidingFactor string
}

// SelectionStrategy indicates how a version was selected.
type SelectionStrategy string

const (
	// StrategyHighest is the default: the highest requested version wins.
	StrategyHighest SelectionStrategy = "highest_requested"

	// StrategySingleVersion indicates a single_version_override pinned the
	// version.
	StrategySingleVersion SelectionStrategy = "single_version_override"

	// StrategyMultipleVersion indicates a multiple_version_override let
	// this version coexist with others.
	StrategyMultipleVersion SelectionStrategy = "multiple_version_override"

	// StrategyNonRegistry indicates the module comes from an archive, git
	// or local path override.
	StrategyNonRegistry SelectionStrategy = "non_registry_override"

	// StrategyRoot indicates the root module.
	StrategyRoot SelectionStrategy = "root"
)

// VersionCandidate is a version that was requested during discovery.
type VersionCandidate struct {
	Version     string
	RequestedBy []ModuleKey
	Selected    bool

	// RejectionReason explains why this version was not selected.
	RejectionReason string
}

// Explanation explains why a module is at its current version.
type Explanation struct {
	Module           ModuleKey
	Selection        *SelectionInfo
	DependencyChains []DependencyChain
	RequestSummary   string
}

// DependencyChain is a path of dependencies from the root to a module.
type DependencyChain struct {
	Path []ModuleKey

	// RequestedVersion is what the last link requested.
	RequestedVersion string
}

// String renders the chain as "a -> b -> c (requested 1.0)".
func (c DependencyChain) String() string {
	if len(c.Path) == 0 {
		return ""
	}
	parts := make([]string, len(c.Path))
	for i, k := range c.Path {
		parts[i] = k.String()
	}
	result := strings.Join(parts, " -> ")
	if c.RequestedVersion != "" {
		result += fmt.Sprintf(" (requested %s)", c.RequestedVersion)
	}
	return result
}

// Stats summarizes a graph.
type Stats struct {
	TotalModules           int
	DirectDependencies     int
	TransitiveDependencies int
	MaxDepth               int
}
