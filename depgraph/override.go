package depgraph

import (
	"fmt"

	"github.com/albertocavalcante/go-bzlresolve/label"
)

// Override is a root-declared directive changing how one module name is
// resolved. It is a closed set: SingleVersionOverride,
// MultipleVersionOverride, ArchiveOverride, GitOverride and
// LocalPathOverride. Modules without an entry in the override table use
// default registry resolution.
type Override interface {
	isOverride()
}

// SingleVersionOverride pins every request for the module to one version,
// and optionally to one registry.
type SingleVersionOverride struct {
	Version    string
	Registry   string
	Patches    []string
	PatchCmds  []string
	PatchStrip int
}

// MultipleVersionOverride lets several versions of the module coexist.
// Each request resolves to the lowest allowed version no lower than it.
type MultipleVersionOverride struct {
	Versions []string
	Registry string
}

// ArchiveOverride sources the module from an archive.
type ArchiveOverride struct {
	URLs        []string
	Integrity   string
	StripPrefix string
	Patches     []string
	PatchCmds   []string
	PatchStrip  int
}

// GitOverride sources the module from a git repository.
type GitOverride struct {
	Remote         string
	Commit         string
	Patches        []string
	PatchCmds      []string
	PatchStrip     int
	InitSubmodules bool
	StripPrefix    string
}

// LocalPathOverride sources the module from a local directory.
type LocalPathOverride struct {
	Path string
}

func (SingleVersionOverride) isOverride()   {}
func (MultipleVersionOverride) isOverride() {}
func (ArchiveOverride) isOverride()         {}
func (GitOverride) isOverride()             {}
func (LocalPathOverride) isOverride()       {}

// IsNonRegistry reports whether o sources the module outside any registry.
func IsNonRegistry(o Override) bool {
	switch o.(type) {
	case ArchiveOverride, GitOverride, LocalPathOverride:
		return true
	case SingleVersionOverride, MultipleVersionOverride, nil:
		return false
	default:
		panic(fmt.Sprintf("unknown override type %T", o))
	}
}

// OverrideKind returns the MODULE.bazel function name declaring o.
func OverrideKind(o Override) string {
	switch o.(type) {
	case SingleVersionOverride:
		return "single_version_override"
	case MultipleVersionOverride:
		return "multiple_version_override"
	case ArchiveOverride:
		return "archive_override"
	case GitOverride:
		return "git_override"
	case LocalPathOverride:
		return "local_path_override"
	default:
		panic(fmt.Sprintf("unknown override type %T", o))
	}
}

// Repository rules used for non-registry sources.
const (
	HTTPBzl = "@bazel_tools//tools/build_defs/repo:http.bzl"
	GitBzl  = "@bazel_tools//tools/build_defs/repo:git.bzl"
)

// NonRegistryRepoSpec returns the repository rule that materializes a
// module overridden by o under the canonical name repo. ok is false for
// registry overrides.
func NonRegistryRepoSpec(o Override, repo label.RepositoryName) (spec RepoSpec, ok bool) {
	switch o := o.(type) {
	case LocalPathOverride:
		return RepoSpec{
			RuleClassName: "local_repository",
			Attributes:    map[string]any{"name": repo.Name(), "path": o.Path},
		}, true
	case ArchiveOverride:
		return RepoSpec{
			BzlFile:       HTTPBzl,
			RuleClassName: "http_archive",
			Attributes: map[string]any{
				"name":         repo.Name(),
				"urls":         o.URLs,
				"integrity":    o.Integrity,
				"strip_prefix": o.StripPrefix,
				"patches":      o.Patches,
				"patch_cmds":   o.PatchCmds,
				"patch_args":   []string{fmt.Sprintf("-p%d", o.PatchStrip)},
			},
		}, true
	case GitOverride:
		return RepoSpec{
			BzlFile:       GitBzl,
			RuleClassName: "git_repository",
			Attributes: map[string]any{
				"name":            repo.Name(),
				"remote":          o.Remote,
				"commit":          o.Commit,
				"patches":         o.Patches,
				"patch_cmds":      o.PatchCmds,
				"patch_args":      []string{fmt.Sprintf("-p%d", o.PatchStrip)},
				"init_submodules": o.InitSubmodules,
				"strip_prefix":    o.StripPrefix,
			},
		}, true
	case SingleVersionOverride, MultipleVersionOverride:
		return RepoSpec{}, false
	default:
		panic(fmt.Sprintf("unknown override type %T", o))
	}
}
