package repomap

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/label"
)

// Separator joins the parts of generated canonical repository names.
const Separator = "~"

// mainPrefix stands in for the main repository's empty name when it hosts
// an extension.
const mainPrefix = "_main"

// CanonicalNames assigns a canonical repository name to every module of a
// resolved graph:
//
//   - the root module is the main repository;
//   - bazel_tools and local_config_platform keep their module name;
//   - a module present in a single version is "name~";
//   - versions coexisting under a multiple_version_override are
//     "name~version".
//
// The result is injective.
func CanonicalNames(g *depgraph.DepGraph[*depgraph.Module]) map[depgraph.ModuleKey]label.RepositoryName {
	versions := make(map[string]int)
	for key := range g.All() {
		versions[key.Name]++
	}

	names := make(map[depgraph.ModuleKey]label.RepositoryName, g.Len())
	for key := range g.All() {
		switch {
		case key == depgraph.RootKey:
			names[key] = label.Main
		case versions[key.Name] > 1:
			names[key] = label.RepositoryName(key.Name + Separator + key.Version)
		default:
			if r, ok := label.WellKnownRepo(key.Name); ok {
				names[key] = r
			} else {
				names[key] = label.RepositoryName(key.Name + Separator)
			}
		}
	}
	return names
}

// ExtensionUniqueNames gives every extension a distinct prefix for the
// repositories it generates: "<hosting repo>~<extension name>", with a
// numeric suffix starting at 2 when two ids would collide. ids are
// processed in sorted order so the assignment is stable.
func ExtensionUniqueNames(ids []depgraph.ModuleExtensionID) map[depgraph.ModuleExtensionID]string {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, depgraph.ModuleExtensionID.Compare)
	sorted = slices.Compact(sorted)

	taken := make(map[string]bool, len(sorted))
	result := make(map[depgraph.ModuleExtensionID]string, len(sorted))
	for _, id := range sorted {
		prefix := id.BzlFile.Repo.Name()
		if id.BzlFile.Repo.IsMain() {
			prefix = mainPrefix
		}
		best := prefix + Separator + id.Name
		name := best
		for suffix := 2; taken[name]; suffix++ {
			name = best + strconv.Itoa(suffix)
		}
		taken[name] = true
		result[id] = name
	}
	return result
}

// ExtensionRepoName returns the canonical name of the repository an
// extension with the given unique name generates as internal.
func ExtensionRepoName(uniqueName, internal string) label.RepositoryName {
	return label.RepositoryName(uniqueName + Separator + internal)
}

// bootstrap is visible from every module repository unless the module maps
// the names itself.
var bootstrap = map[string]label.RepositoryName{
	label.BazelTools.Name(): label.BazelTools,
	label.Builtins.Name():   label.Builtins,
}

// UsageRef is one module's usage of an extension.
type UsageRef struct {
	Module depgraph.ModuleKey
	Usage  depgraph.ExtensionUsage
}

// Index is the naming view of a resolved graph. It is built once per
// resolution and shared by every mapping computation.
type Index struct {
	graph *depgraph.DepGraph[*depgraph.Module]

	canonical   map[depgraph.ModuleKey]label.RepositoryName
	byCanonical map[label.RepositoryName]depgraph.ModuleKey
	// usages lists, per extension, the modules using it in graph order.
	usages      map[depgraph.ModuleExtensionID][]UsageRef
	uniqueNames map[depgraph.ModuleExtensionID]string
	// byUnique is sorted by unique name for prefix lookups.
	byUnique []depgraph.ModuleExtensionID
}

// Build indexes g. It fails when an extension usage names a .bzl file the
// using module cannot see, or when one module reaches the same extension
// through two different labels.
func Build(g *depgraph.DepGraph[*depgraph.Module]) (*Index, error) {
	idx := &Index{
		graph:       g,
		canonical:   CanonicalNames(g),
		byCanonical: make(map[label.RepositoryName]depgraph.ModuleKey, g.Len()),
		usages:      make(map[depgraph.ModuleExtensionID][]UsageRef),
	}
	for key, repo := range idx.canonical {
		idx.byCanonical[repo] = key
	}

	for key, m := range g.All() {
		deps := idx.DepsMapping(key)
		seen := make(map[depgraph.ModuleExtensionID]string)
		for _, u := range m.ExtensionUsages {
			id, err := extensionID(u, deps)
			if err != nil {
				return nil, fmt.Errorf("module %s: %w", key, err)
			}
			if prev, dup := seen[id]; dup {
				return nil, fmt.Errorf("module %s uses extension %s through both %s and %s", key, id, prev, u.BzlFile)
			}
			seen[id] = u.BzlFile
			idx.usages[id] = append(idx.usages[id], UsageRef{Module: key, Usage: u})
		}
	}

	idx.uniqueNames = ExtensionUniqueNames(slices.Collect(maps.Keys(idx.usages)))
	idx.byUnique = slices.SortedFunc(maps.Keys(idx.uniqueNames), func(a, b depgraph.ModuleExtensionID) int {
		return strings.Compare(idx.uniqueNames[a], idx.uniqueNames[b])
	})
	return idx, nil
}

func extensionID(u depgraph.ExtensionUsage, deps Mapping) (depgraph.ModuleExtensionID, error) {
	l, err := label.Parse(u.BzlFile)
	if err != nil {
		return depgraph.ModuleExtensionID{}, err
	}
	c, err := l.Canonicalize(deps, deps.Owner())
	if err != nil {
		return depgraph.ModuleExtensionID{}, err
	}
	return depgraph.ModuleExtensionID{BzlFile: c, Name: u.Name}, nil
}

// Graph returns the indexed graph.
func (idx *Index) Graph() *depgraph.DepGraph[*depgraph.Module] { return idx.graph }

// CanonicalName returns the canonical repository name of key.
func (idx *Index) CanonicalName(key depgraph.ModuleKey) (label.RepositoryName, bool) {
	r, ok := idx.canonical[key]
	return r, ok
}

// CanonicalNames returns a copy of the key to repository name table.
func (idx *Index) CanonicalNames() map[depgraph.ModuleKey]label.RepositoryName {
	return maps.Clone(idx.canonical)
}

// ModuleFor returns the module whose repository is repo.
func (idx *Index) ModuleFor(repo label.RepositoryName) (depgraph.ModuleKey, bool) {
	k, ok := idx.byCanonical[repo]
	return k, ok
}

// Extensions returns every used extension, sorted.
func (idx *Index) Extensions() []depgraph.ModuleExtensionID {
	return slices.SortedFunc(maps.Keys(idx.usages), depgraph.ModuleExtensionID.Compare)
}

// Usages returns the usages of id in graph order.
func (idx *Index) Usages(id depgraph.ModuleExtensionID) []UsageRef {
	return idx.usages[id]
}

// UniqueName returns the unique name of id.
func (idx *Index) UniqueName(id depgraph.ModuleExtensionID) (string, bool) {
	n, ok := idx.uniqueNames[id]
	return n, ok
}

// ExtensionFor returns the extension that generates repo, and the name the
// extension uses for it internally.
func (idx *Index) ExtensionFor(repo label.RepositoryName) (id depgraph.ModuleExtensionID, internal string, ok bool) {
	// A unique name sorts before every name it is a prefix of.
	for _, cand := range slices.Backward(idx.byUnique) {
		prefix := idx.uniqueNames[cand] + Separator
		if rest, found := strings.CutPrefix(repo.Name(), prefix); found && rest != "" {
			return cand, rest, true
		}
	}
	return depgraph.ModuleExtensionID{}, "", false
}

// DepsMapping returns the mapping of key's repository restricted to its own
// name and its bazel_dep edges. Extension labels are resolved with it.
func (idx *Index) DepsMapping(key depgraph.ModuleKey) Mapping {
	m, _ := idx.graph.Get(key)
	owner := idx.canonical[key]
	entries := make(map[string]label.RepositoryName, len(m.Deps)+2)
	if key == depgraph.RootKey {
		entries[""] = label.Main
	}
	if m.RepoName != "" {
		entries[m.RepoName] = owner
	}
	for _, dep := range m.Deps {
		entries[dep.RepoName] = idx.canonical[dep.Key]
	}
	return New(entries, owner)
}

// FullMapping returns everything key's repository can see: its deps
// mapping, then its use_repo imports, then the bootstrap repositories.
// Earlier sources win.
func (idx *Index) FullMapping(key depgraph.ModuleKey) Mapping {
	imports := make(map[string]label.RepositoryName)
	for _, id := range idx.Extensions() {
		for _, ref := range idx.usages[id] {
			if ref.Module != key {
				continue
			}
			for _, imp := range ref.Usage.Imports {
				imports[imp.Apparent] = ExtensionRepoName(idx.uniqueNames[id], imp.Internal)
			}
		}
	}
	return idx.DepsMapping(key).
		WithAdditionalMappings(imports).
		WithAdditionalMappings(bootstrap)
}

// ExtensionRepoMapping returns the mapping of a repository generated by id:
// its sibling repositories by internal name, widened by the full mapping of
// the module hosting the extension's .bzl file.
func (idx *Index) ExtensionRepoMapping(id depgraph.ModuleExtensionID, repo label.RepositoryName, generated []string) (Mapping, error) {
	host, ok := idx.ModuleFor(id.BzlFile.Repo)
	if !ok {
		return Mapping{}, fmt.Errorf("extension %s is hosted in %s, which is not a module repository", id, id.BzlFile.Repo)
	}
	unique := idx.uniqueNames[id]
	siblings := make(map[string]label.RepositoryName, len(generated))
	for _, internal := range generated {
		siblings[internal] = ExtensionRepoName(unique, internal)
	}
	return New(siblings, repo).WithAdditionalMappings(idx.FullMapping(host).Entries()), nil
}
