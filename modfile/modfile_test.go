package modfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

const rootFile = `
module(
    name = "my_project",
    version = "1.0",
    compatibility_level = 1,
    bazel_compatibility = [">=7.0.0"],
)

bazel_dep(name = "rules_go", version = "0.50.1", repo_name = "io_bazel_rules_go")
bazel_dep(name = "protobuf", version = "27.0", max_compatibility_level = 2)
bazel_dep(name = "rules_testing", version = "0.6.0", dev_dependency = True)

single_version_override(module_name = "protobuf", version = "27.1", patch_strip = 1, patches = ["//:fix.patch"])
multiple_version_override(module_name = "abseil", versions = ["1.0", "2.0"])
local_path_override(module_name = "local_lib", path = "../local_lib")
archive_override(module_name = "zlib", urls = "https://example.com/zlib.tar.gz", strip_prefix = "zlib-1.3")
git_override(module_name = "fmt", remote = "https://github.com/fmtlib/fmt.git", commit = "abc123", init_submodules = True)

go_sdk = use_extension("@rules_go//go:extensions.bzl", "go_sdk")
go_sdk.download(version = "1.22.0", goos = ["linux"])
use_repo(go_sdk, "go_toolchains", my_sdk = "go_sdk")

dev = use_extension("//:dev.bzl", "dev_ext", dev_dependency = True)
dev.thing(name = "x")
use_repo(dev, "dev_repo")

register_toolchains("//:all")
`

func TestParseRoot(t *testing.T) {
	f, err := Parse("MODULE.bazel", []byte(rootFile), Options{Root: true})
	require.NoError(t, err)

	m := f.Module
	assert.Equal(t, depgraph.RootKey, m.Key)
	assert.Equal(t, "my_project", m.Name)
	assert.Equal(t, "1.0", m.Version)
	assert.Equal(t, 1, m.CompatibilityLevel)
	assert.Equal(t, "my_project", m.RepoName)
	assert.Equal(t, []string{">=7.0.0"}, m.BazelCompatibility)

	wantDeps := []depgraph.DepSpec{
		{RepoName: "io_bazel_rules_go", Name: "rules_go", Version: "0.50.1", MaxCompatibilityLevel: -1},
		{RepoName: "protobuf", Name: "protobuf", Version: "27.0", MaxCompatibilityLevel: 2},
		{RepoName: "rules_testing", Name: "rules_testing", Version: "0.6.0", MaxCompatibilityLevel: -1},
	}
	if diff := cmp.Diff(wantDeps, m.Deps); diff != "" {
		t.Errorf("deps mismatch (-want +got):\n%s", diff)
	}

	wantOverrides := map[string]depgraph.Override{
		"protobuf":  depgraph.SingleVersionOverride{Version: "27.1", Patches: []string{"//:fix.patch"}, PatchStrip: 1},
		"abseil":    depgraph.MultipleVersionOverride{Versions: []string{"1.0", "2.0"}},
		"local_lib": depgraph.LocalPathOverride{Path: "../local_lib"},
		"zlib":      depgraph.ArchiveOverride{URLs: []string{"https://example.com/zlib.tar.gz"}, StripPrefix: "zlib-1.3"},
		"fmt":       depgraph.GitOverride{Remote: "https://github.com/fmtlib/fmt.git", Commit: "abc123", InitSubmodules: true},
	}
	if diff := cmp.Diff(wantOverrides, f.Overrides); diff != "" {
		t.Errorf("overrides mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, m.ExtensionUsages, 2)
	goSDK := m.ExtensionUsages[0]
	assert.Equal(t, "@rules_go//go:extensions.bzl", goSDK.BzlFile)
	assert.Equal(t, "go_sdk", goSDK.Name)
	assert.False(t, goSDK.DevDependency)
	assert.Equal(t, []depgraph.Import{
		{Apparent: "go_toolchains", Internal: "go_toolchains"},
		{Apparent: "my_sdk", Internal: "go_sdk"},
	}, goSDK.Imports)
	require.Len(t, goSDK.Tags, 1)
	assert.Equal(t, "download", goSDK.Tags[0].Class)
	assert.Equal(t, map[string]any{"version": "1.22.0", "goos": []any{"linux"}}, goSDK.Tags[0].Attrs)

	dev := m.ExtensionUsages[1]
	assert.True(t, dev.DevDependency)
	assert.True(t, dev.Tags[0].DevDependency)
}

func TestParseNonRootIgnoresDevAndOverrides(t *testing.T) {
	key := depgraph.ModuleKey{Name: "my_project", Version: "1.0"}
	f, err := Parse("MODULE.bazel", []byte(rootFile), Options{Key: key, Registry: "https://bcr.bazel.build"})
	require.NoError(t, err)

	assert.Equal(t, key, f.Module.Key)
	assert.Equal(t, "https://bcr.bazel.build", f.Module.Registry)
	assert.Empty(t, f.Overrides)
	assert.Len(t, f.Module.Deps, 2)
	require.Len(t, f.Module.ExtensionUsages, 1)
	assert.Equal(t, "go_sdk", f.Module.ExtensionUsages[0].Name)
}

func TestParseIgnoreDevDependencies(t *testing.T) {
	f, err := Parse("MODULE.bazel", []byte(rootFile), Options{Root: true, IgnoreDevDependencies: true})
	require.NoError(t, err)
	assert.Len(t, f.Module.Deps, 2)
	assert.Len(t, f.Module.ExtensionUsages, 1)
}

func TestParseMergesProxiesOfOneExtension(t *testing.T) {
	content := `
a = use_extension("//:ext.bzl", "ext")
a.tag(n = 1)
b = use_extension("//:ext.bzl", "ext", dev_dependency = True)
b.tag(n = 2)
use_repo(b, "r")
`
	f, err := Parse("MODULE.bazel", []byte(content), Options{Root: true})
	require.NoError(t, err)
	require.Len(t, f.Module.ExtensionUsages, 1)
	u := f.Module.ExtensionUsages[0]
	assert.False(t, u.DevDependency)
	assert.Len(t, u.Tags, 2)
	assert.False(t, u.Tags[0].DevDependency)
	assert.True(t, u.Tags[1].DevDependency)
	assert.Equal(t, []depgraph.Import{{Apparent: "r", Internal: "r"}}, u.Imports)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax", `bazel_dep(`, "failed to parse"},
		{"module twice", "module(name = \"a\")\nmodule(name = \"b\")", "can only be called once"},
		{"bad module name", `bazel_dep(name = "Bad", version = "1.0")`, "invalid module name"},
		{"duplicate repo name", "bazel_dep(name = \"a\", version = \"1\")\nbazel_dep(name = \"b\", version = \"1\", repo_name = \"a\")", "already being used"},
		{"duplicate override", "local_path_override(module_name = \"a\", path = \"x\")\nlocal_path_override(module_name = \"a\", path = \"y\")", "multiple overrides"},
		{"unknown proxy", `nope.tag(x = 1)`, "not an extension proxy"},
		{"use_repo unknown proxy", `use_repo(nope, "x")`, "not an extension proxy"},
		{"wrong attribute type", `bazel_dep(name = "a", version = 1)`, "version must be a string"},
		{"mvo with one version", `multiple_version_override(module_name = "a", versions = ["1.0"])`, "at least two versions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("MODULE.bazel", []byte(tt.content), Options{Root: true})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MODULE.bazel")
	require.NoError(t, os.WriteFile(path, []byte(`module(name = "x", version = "2.0")`), 0o644))

	f, err := ParseFile(path, Options{Root: true})
	require.NoError(t, err)
	assert.Equal(t, "x", f.Module.Name)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing"), Options{Root: true})
	assert.ErrorContains(t, err, "failed to read module file")
}
