package bzlresolve

import (
	"fmt"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/eval"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/repomap"
)

// Function names of the evaluation keys.
const (
	FuncRootModuleFile eval.FunctionName = "ROOT_MODULE_FILE"
	FuncModuleFile     eval.FunctionName = "MODULE_FILE"
	FuncDiscovery      eval.FunctionName = "BAZEL_DEP_GRAPH_DISCOVERY"
	FuncResolution     eval.FunctionName = "BAZEL_MODULE_RESOLUTION"
	FuncYankedVersions eval.FunctionName = "YANKED_VERSIONS"
	FuncDepGraph       eval.FunctionName = "BAZEL_DEP_GRAPH"
	FuncExtensionEval  eval.FunctionName = "SINGLE_EXTENSION_EVAL"
	FuncModuleRepoSpec eval.FunctionName = "MODULE_REPO_SPEC"
	FuncRepoRule       eval.FunctionName = "BZLMOD_REPO_RULE"
	FuncRepoMapping    eval.FunctionName = "REPOSITORY_MAPPING"
	FuncLegacyRepos    eval.FunctionName = "LEGACY_REPOS"
)

// RootModuleFileKey is the parsed root MODULE.bazel.
type RootModuleFileKey struct{}

func (RootModuleFileKey) Function() eval.FunctionName { return FuncRootModuleFile }
func (RootModuleFileKey) String() string              { return "root module file" }

// RootModuleFileValue is the value of RootModuleFileKey.
type RootModuleFileValue struct {
	Module    *depgraph.InterimModule
	Overrides map[string]depgraph.Override

	// NonRegistryRepos maps the canonical repository name of every module
	// with a non-registry override to the module name.
	NonRegistryRepos map[label.RepositoryName]string

	// Content is the file as read, for lockfile hashing.
	Content []byte
}

// ModuleFileKey is the module file of one module version. The version is
// empty for modules with a non-registry override.
type ModuleFileKey struct {
	Key depgraph.ModuleKey
}

func (ModuleFileKey) Function() eval.FunctionName { return FuncModuleFile }
func (k ModuleFileKey) String() string            { return "module file " + k.Key.String() }

// ModuleFileValue is the value of ModuleFileKey.
type ModuleFileValue struct {
	Module *depgraph.InterimModule
}

// DiscoveryKey is the un-pruned dependency graph.
type DiscoveryKey struct{}

func (DiscoveryKey) Function() eval.FunctionName { return FuncDiscovery }
func (DiscoveryKey) String() string              { return "discovery" }

// DiscoveryValue is the value of DiscoveryKey.
type DiscoveryValue struct {
	Graph *depgraph.DepGraph[*depgraph.InterimModule]
}

// ResolutionKey is the selected and validated dependency graph.
type ResolutionKey struct{}

func (ResolutionKey) Function() eval.FunctionName { return FuncResolution }
func (ResolutionKey) String() string              { return "resolution" }

// ResolutionValue is the value of ResolutionKey.
type ResolutionValue struct {
	// Resolved is the pruned graph in BFS order.
	Resolved *depgraph.DepGraph[*depgraph.Module]
	// Unpruned keeps every discovered module with rewritten edges.
	Unpruned *depgraph.DepGraph[*depgraph.InterimModule]
	// Discovered is the graph before selection, as requested.
	Discovered *depgraph.DepGraph[*depgraph.InterimModule]

	// SelectedYanked lists the selected modules that are yanked but
	// allowed, with their yank reasons.
	SelectedYanked map[depgraph.ModuleKey]string

	Warnings []string
}

// YankedVersionsKey is the yank metadata of one module in one registry.
type YankedVersionsKey struct {
	Name     string
	Registry string
}

func (YankedVersionsKey) Function() eval.FunctionName { return FuncYankedVersions }
func (k YankedVersionsKey) String() string {
	return fmt.Sprintf("yanked versions of %s in %s", k.Name, k.Registry)
}

// YankedVersionsValue maps yanked versions to their reasons.
type YankedVersionsValue struct {
	Reasons map[string]string
}

// DepGraphKey is the naming view of the resolved graph.
type DepGraphKey struct{}

func (DepGraphKey) Function() eval.FunctionName { return FuncDepGraph }
func (DepGraphKey) String() string              { return "dep graph" }

// DepGraphValue is the value of DepGraphKey.
type DepGraphValue struct {
	Index *repomap.Index
}

// ExtensionEvalKey is the evaluation of one module extension.
type ExtensionEvalKey struct {
	ID depgraph.ModuleExtensionID
}

func (ExtensionEvalKey) Function() eval.FunctionName { return FuncExtensionEval }
func (k ExtensionEvalKey) String() string            { return "extension " + k.ID.String() }

// ExtensionEvalValue is the value of ExtensionEvalKey.
type ExtensionEvalValue struct {
	// Repos are the generated repositories by internal name. Their "name"
	// attribute is the canonical name.
	Repos map[string]depgraph.RepoSpec

	// CanonicalToInternal inverts the naming of Repos.
	CanonicalToInternal map[label.RepositoryName]string
}

// Internal returns the internal names of the generated repositories.
func (v *ExtensionEvalValue) Internal() []string {
	names := make([]string, 0, len(v.Repos))
	for name := range v.Repos {
		names = append(names, name)
	}
	return names
}

// ModuleRepoSpecKey is the repository rule of a registry-sourced module.
type ModuleRepoSpecKey struct {
	Key      depgraph.ModuleKey
	Registry string
	Repo     label.RepositoryName
}

func (ModuleRepoSpecKey) Function() eval.FunctionName { return FuncModuleRepoSpec }
func (k ModuleRepoSpecKey) String() string {
	return fmt.Sprintf("repo spec of %s from %s", k.Key, k.Registry)
}

// ModuleRepoSpecValue is the value of ModuleRepoSpecKey.
type ModuleRepoSpecValue struct {
	Spec depgraph.RepoSpec
}

// RepoRuleKey asks which rule defines a canonical repository.
type RepoRuleKey struct {
	Repo label.RepositoryName
}

func (RepoRuleKey) Function() eval.FunctionName { return FuncRepoRule }
func (k RepoRuleKey) String() string            { return "repo rule " + k.Repo.String() }

// RepoSource says which step of the lookup produced a repository rule.
type RepoSource string

const (
	SourceOverride  RepoSource = "override"
	SourceModule    RepoSource = "module"
	SourceExtension RepoSource = "extension"
)

// RepoRuleValue is the value of RepoRuleKey.
type RepoRuleValue struct {
	Repo   label.RepositoryName
	Spec   depgraph.RepoSpec
	Source RepoSource
}

// RepoRuleNotFound is the value of a RepoRuleKey no lookup step matched.
var RepoRuleNotFound = &RepoRuleValue{}

// Found reports whether v defines a repository.
func (v *RepoRuleValue) Found() bool { return v != RepoRuleNotFound }

// RepoMappingKey is the repository mapping of one repository.
type RepoMappingKey struct {
	Repo label.RepositoryName
	// RootSeesLegacyRepos widens the main repository's mapping with every
	// legacy repository.
	RootSeesLegacyRepos bool
}

func (RepoMappingKey) Function() eval.FunctionName { return FuncRepoMapping }
func (k RepoMappingKey) String() string {
	if k.RootSeesLegacyRepos {
		return "repo mapping " + k.Repo.String() + " (with legacy repos)"
	}
	return "repo mapping " + k.Repo.String()
}

// RepoMappingValue is the value of RepoMappingKey.
type RepoMappingValue struct {
	Mapping repomap.Mapping
}

// LegacyReposKey is the set of repositories defined outside the module
// graph.
type LegacyReposKey struct{}

func (LegacyReposKey) Function() eval.FunctionName { return FuncLegacyRepos }
func (LegacyReposKey) String() string              { return "legacy repos" }

// LegacyReposValue is the value of LegacyReposKey.
type LegacyReposValue struct {
	WorkspaceName string
	// Repos maps each legacy repository name to its own mapping.
	Repos map[string]map[string]label.RepositoryName
}
