package depgraph

import (
	"cmp"

	"github.com/albertocavalcante/go-bzlresolve/label"
)

// ExtensionUsage records one module's use_extension proxy: the extension it
// names, the tags it calls on the proxy and the repositories it imports with
// use_repo.
type ExtensionUsage struct {
	// BzlFile is the label of the .bzl file as written in MODULE.bazel,
	// relative to the declaring module.
	BzlFile       string
	Name          string
	Imports       []Import
	Tags          []Tag
	DevDependency bool
}

// Import is one use_repo entry: the repository generated under Internal by
// the extension becomes visible to the module as Apparent.
type Import struct {
	Apparent string
	Internal string
}

// Tag is one tag call on an extension proxy, e.g. go_sdk.download(...).
type Tag struct {
	Class         string
	Attrs         map[string]any
	DevDependency bool
}

// ModuleExtensionID identifies an extension implementation by the canonical
// label of its .bzl file and its exported name.
type ModuleExtensionID struct {
	BzlFile label.CanonicalLabel
	Name    string
}

// String renders the id as "@@repo//pkg:file.bzl%name".
func (id ModuleExtensionID) String() string {
	return id.BzlFile.String() + "%" + id.Name
}

// Compare orders ids by label text, then extension name.
func (id ModuleExtensionID) Compare(o ModuleExtensionID) int {
	if c := cmp.Compare(id.BzlFile.String(), o.BzlFile.String()); c != 0 {
		return c
	}
	return cmp.Compare(id.Name, o.Name)
}

// RepoSpec describes how to materialize a repository: either a native rule
// class (BzlFile empty) or a Starlark rule exported by BzlFile, plus its
// attributes.
type RepoSpec struct {
	BzlFile       string
	RuleClassName string
	Attributes    map[string]any
}

// IsNative reports whether the spec names a native repository rule.
func (s RepoSpec) IsNative() bool {
	return s.BzlFile == ""
}

// RuleClass renders the rule class, "file.bzl%rule" for Starlark rules.
func (s RepoSpec) RuleClass() string {
	if s.IsNative() {
		return s.RuleClassName
	}
	return s.BzlFile + "%" + s.RuleClassName
}
