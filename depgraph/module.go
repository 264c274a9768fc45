// Package depgraph holds the data model shared by every resolution stage:
// module identities, the pre- and post-selection module nodes, immutable
// ordered dependency graphs, root overrides, extension usages and
// repository rule specifications.
//
// Values in this package are built once and never mutated. Stages that
// "rewrite" a node construct a new one.
package depgraph

import (
	"cmp"

	"github.com/albertocavalcante/go-bzlresolve/selection/version"
)

// ModuleKey identifies a module in the dependency graph. Version is empty
// for modules whose source comes from a non-registry override; such modules
// are identified by name alone.
type ModuleKey struct {
	Name    string
	Version string
}

// RootKey is the key of the root module, whatever its declared name.
var RootKey = ModuleKey{Name: "<root>"}

// String returns "name@version", or "name@_" when version is empty.
// The root key renders as "<root>".
func (k ModuleKey) String() string {
	if k == RootKey {
		return k.Name
	}
	if k.Version == "" {
		return k.Name + "@_"
	}
	return k.Name + "@" + k.Version
}

// Compare orders keys by name, then by version ordering.
func (k ModuleKey) Compare(o ModuleKey) int {
	if c := cmp.Compare(k.Name, o.Name); c != 0 {
		return c
	}
	return version.Compare(k.Version, o.Version)
}

// DepSpec is a dependency as declared by a bazel_dep call, before selection.
type DepSpec struct {
	// RepoName is the apparent name the depending module uses for the
	// dependency. It defaults to the dependency's module name.
	RepoName string
	Name     string
	Version  string

	// MaxCompatibilityLevel allows the dependency to resolve to a module with
	// a higher compatibility level, up to this value. -1 means unset.
	MaxCompatibilityLevel int
}

// Key returns the module key the spec requests.
func (d DepSpec) Key() ModuleKey {
	return ModuleKey{Name: d.Name, Version: d.Version}
}

// Dep is a dependency edge after selection: the apparent name and the
// selected module it points at.
type Dep struct {
	RepoName string
	Key      ModuleKey
}

// InterimModule is a node of the un-pruned graph produced by discovery.
// Its dependency edges are the requested keys, after override rewriting but
// before version selection.
type InterimModule struct {
	Key                ModuleKey
	Name               string
	Version            string
	CompatibilityLevel int
	// RepoName is the apparent name the module uses for itself.
	RepoName           string
	Deps               []DepSpec
	BazelCompatibility []string
	ExtensionUsages    []ExtensionUsage
	// Registry is the URL of the registry the module file came from. Empty
	// for the root module and for non-registry overrides.
	Registry string
}

// Module is a node of the pruned graph produced by selection.
type Module struct {
	Key                ModuleKey
	Name               string
	Version            string
	CompatibilityLevel int
	RepoName           string
	Deps               []Dep
	BazelCompatibility []string
	ExtensionUsages    []ExtensionUsage
	Registry           string
}

// Display renders the module the way diagnostics name it: "name@version"
// from its own declaration.
func (m *Module) Display() string {
	return displayName(m.Name, m.Version)
}

// Display renders the module the way diagnostics name it.
func (m *InterimModule) Display() string {
	return displayName(m.Name, m.Version)
}

func displayName(name, ver string) string {
	if ver == "" {
		return name + "@_"
	}
	return name + "@" + ver
}

// ResolvedModule builds the post-selection node for m with the given
// rewritten edges.
func ResolvedModule(m *InterimModule, deps []Dep) *Module {
	return &Module{
		Key:                m.Key,
		Name:               m.Name,
		Version:            m.Version,
		CompatibilityLevel: m.CompatibilityLevel,
		RepoName:           m.RepoName,
		Deps:               deps,
		BazelCompatibility: m.BazelCompatibility,
		ExtensionUsages:    m.ExtensionUsages,
		Registry:           m.Registry,
	}
}

// DepByRepoName returns the dependency with the given apparent name.
func (m *Module) DepByRepoName(repoName string) (Dep, bool) {
	for _, d := range m.Deps {
		if d.RepoName == repoName {
			return d, true
		}
	}
	return Dep{}, false
}
