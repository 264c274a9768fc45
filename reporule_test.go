package bzlresolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/eval/evaltest"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/repomap"
)

func testFunctions(t *testing.T, opts ...Option) *functions {
	t.Helper()
	base := []Option{WithRootModuleFile("MODULE.bazel", []byte(`module(name = "m")`))}
	cfg, err := newConfig(append(base, opts...)...)
	require.NoError(t, err)
	return &functions{cfg: cfg, loader: newFakeLoader(nil)}
}

var aKey = depgraph.ModuleKey{Name: "a", Version: "1.0"}

// testIndex names a graph where the root depends on a@1.0.
func testIndex(t *testing.T) *repomap.Index {
	t.Helper()
	root := &depgraph.Module{
		Key: depgraph.RootKey, Name: "m", RepoName: "m",
		Deps: []depgraph.Dep{{RepoName: "a", Key: aKey}},
	}
	a := &depgraph.Module{Key: aKey, Name: "a", Version: "1.0", RepoName: "a", Registry: fakeRegistry}
	g, err := depgraph.NewDepGraph(
		[]depgraph.ModuleKey{depgraph.RootKey, aKey},
		map[depgraph.ModuleKey]*depgraph.Module{depgraph.RootKey: root, aKey: a},
	)
	require.NoError(t, err)
	idx, err := repomap.Build(g)
	require.NoError(t, err)
	return idx
}

func emptyRoot() *RootModuleFileValue {
	return &RootModuleFileValue{
		Overrides:        map[string]depgraph.Override{},
		NonRegistryRepos: map[label.RepositoryName]string{},
	}
}

func TestRepoRuleLadder_OverrideNeedsOnlyRootModule(t *testing.T) {
	f := testFunctions(t)
	key := RepoRuleKey{Repo: "loc~"}
	env := evaltest.New(key).Set(RootModuleFileKey{}, &RootModuleFileValue{
		Overrides:        map[string]depgraph.Override{"loc": depgraph.LocalPathOverride{Path: "third_party/loc"}},
		NonRegistryRepos: map[label.RepositoryName]string{"loc~": "loc"},
	})

	res, err := f.repoRule(context.Background(), key, env)
	require.NoError(t, err)
	require.False(t, res.IsPending())
	assert.Empty(t, env.Requested, "an overridden module is found without the resolved graph")

	v := res.Value().(*RepoRuleValue)
	assert.Equal(t, SourceOverride, v.Source)
	assert.Equal(t, "local_repository", v.Spec.RuleClassName)
	assert.Equal(t, "third_party/loc", v.Spec.Attributes["path"])
}

func TestRepoRuleLadder_ResumesAtSuspendedStep(t *testing.T) {
	f := testFunctions(t)
	ctx := context.Background()
	key := RepoRuleKey{Repo: "a~"}
	env := evaltest.New(key).Set(RootModuleFileKey{}, emptyRoot())

	res, err := f.repoRule(ctx, key, env)
	require.NoError(t, err)
	require.True(t, res.IsPending())
	assert.Equal(t, []any{DepGraphKey{}}, keysOf(res.Missing()))

	// Inputs consumed by earlier steps are not asked for again.
	env.Restart()
	delete(env.Values, RootModuleFileKey{})
	env.Set(DepGraphKey{}, &DepGraphValue{Index: testIndex(t)})

	res, err = f.repoRule(ctx, key, env)
	require.NoError(t, err)
	require.True(t, res.IsPending())
	specKey := ModuleRepoSpecKey{Key: aKey, Registry: fakeRegistry, Repo: "a~"}
	assert.Equal(t, []any{specKey}, keysOf(res.Missing()))

	env.Restart()
	delete(env.Values, DepGraphKey{})
	env.Set(specKey, &ModuleRepoSpecValue{Spec: depgraph.RepoSpec{
		BzlFile:       depgraph.HTTPBzl,
		RuleClassName: "http_archive",
		Attributes:    map[string]any{"name": "a~"},
	}})

	res, err = f.repoRule(ctx, key, env)
	require.NoError(t, err)
	require.False(t, res.IsPending())
	assert.Empty(t, env.Requested)
	v := res.Value().(*RepoRuleValue)
	assert.Equal(t, SourceModule, v.Source)
	assert.Equal(t, "http_archive", v.Spec.RuleClassName)
}

func TestRepoRuleLadder_NotFound(t *testing.T) {
	f := testFunctions(t)
	for _, repo := range []label.RepositoryName{label.Main, "nothing~"} {
		t.Run(repo.String(), func(t *testing.T) {
			key := RepoRuleKey{Repo: repo}
			env := evaltest.New(key).
				Set(RootModuleFileKey{}, emptyRoot()).
				Set(DepGraphKey{}, &DepGraphValue{Index: testIndex(t)})

			res, err := f.repoRule(context.Background(), key, env)
			require.NoError(t, err)
			require.False(t, res.IsPending())
			assert.False(t, res.Value().(*RepoRuleValue).Found())
		})
	}
}

func TestRepoRuleLadder_PropagatesInputFailure(t *testing.T) {
	f := testFunctions(t)
	key := RepoRuleKey{Repo: "a~"}
	failure := depgraph.Errorf(depgraph.VersionResolutionFailure, "boom")
	env := evaltest.New(key).
		Set(RootModuleFileKey{}, emptyRoot()).
		Fail(DepGraphKey{}, failure)

	_, err := f.repoRule(context.Background(), key, env)
	require.ErrorIs(t, err, failure)
}

func TestValidateRepoSpec(t *testing.T) {
	f := testFunctions(t)
	tests := []struct {
		name    string
		spec    depgraph.RepoSpec
		wantErr string
	}{
		{name: "native", spec: depgraph.RepoSpec{RuleClassName: "local_repository"}},
		{name: "unknown native", spec: depgraph.RepoSpec{RuleClassName: "weird_repository"}, wantErr: "Unrecognized native repository rule: weird_repository"},
		{name: "canonical label", spec: depgraph.RepoSpec{BzlFile: "@@rules_x~//:repo.bzl", RuleClassName: "r"}},
		{name: "main repo", spec: depgraph.RepoSpec{BzlFile: "//tools:repo.bzl", RuleClassName: "r"}},
		{name: "bazel_tools", spec: depgraph.RepoSpec{BzlFile: depgraph.HTTPBzl, RuleClassName: "http_archive"}},
		{name: "apparent label", spec: depgraph.RepoSpec{BzlFile: "@rules_x//:repo.bzl", RuleClassName: "r"}, wantErr: "Invalid repository rule: @rules_x//:repo.bzl%r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.validateRepoSpec(tt.spec)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, depgraph.InvalidRepoSpec, depgraph.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolution_MalformedAllowListFailsFirst(t *testing.T) {
	f := testFunctions(t, WithAllowYankedVersions("b~1.0"))
	env := evaltest.New(ResolutionKey{})

	_, err := f.resolution(context.Background(), ResolutionKey{}, env)
	require.Error(t, err)
	assert.Equal(t, depgraph.MalformedAllowlistEntry, depgraph.CodeOf(err))
	assert.Empty(t, env.Requested)
}

func keysOf[K any](keys []K) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
