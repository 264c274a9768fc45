package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

func key(name, ver string) depgraph.ModuleKey {
	return depgraph.ModuleKey{Name: name, Version: ver}
}

func module(k depgraph.ModuleKey, deps ...depgraph.ModuleKey) *depgraph.InterimModule {
	m := &depgraph.InterimModule{Key: k, Name: k.Name, Version: k.Version, RepoName: k.Name}
	for _, d := range deps {
		m.Deps = append(m.Deps, depgraph.DepSpec{RepoName: d.Name, Name: d.Name, Version: d.Version, MaxCompatibilityLevel: -1})
	}
	return m
}

// registry serves modules that are marked available, and records lookups.
type registry struct {
	modules   map[depgraph.ModuleKey]*depgraph.InterimModule
	available map[depgraph.ModuleKey]bool
	lookups   []depgraph.ModuleKey
}

func newRegistry(mods ...*depgraph.InterimModule) *registry {
	r := &registry{modules: map[depgraph.ModuleKey]*depgraph.InterimModule{}, available: map[depgraph.ModuleKey]bool{}}
	for _, m := range mods {
		r.modules[m.Key] = m
	}
	return r
}

func (r *registry) lookup(k depgraph.ModuleKey) (*depgraph.InterimModule, bool, error) {
	r.lookups = append(r.lookups, k)
	if !r.available[k] {
		return nil, false, nil
	}
	return r.modules[k], true, nil
}

// drive retries Run, making pending keys available, until it completes.
func drive(t *testing.T, root *depgraph.InterimModule, overrides map[string]depgraph.Override, r *registry) (*depgraph.DepGraph[*depgraph.InterimModule], [][]depgraph.ModuleKey) {
	t.Helper()
	var rounds [][]depgraph.ModuleKey
	for range 10 {
		res, err := Run(root, overrides, r.lookup)
		require.NoError(t, err)
		if res.Graph != nil {
			return res.Graph, rounds
		}
		rounds = append(rounds, res.Pending)
		for _, k := range res.Pending {
			r.available[k] = true
		}
	}
	t.Fatal("discovery did not converge")
	return nil, nil
}

func TestRunLayerByLayer(t *testing.T) {
	root := module(depgraph.RootKey, key("a", "1.0"), key("b", "1.0"))
	root.Name = "root"
	r := newRegistry(
		module(key("a", "1.0"), key("c", "1.0")),
		module(key("b", "1.0"), key("c", "1.1")),
		module(key("c", "1.0")),
		module(key("c", "1.1")),
	)

	g, rounds := drive(t, root, nil, r)
	assert.Equal(t, [][]depgraph.ModuleKey{
		{key("a", "1.0"), key("b", "1.0")},
		{key("c", "1.0"), key("c", "1.1")},
	}, rounds)
	assert.Equal(t, []depgraph.ModuleKey{
		depgraph.RootKey, key("a", "1.0"), key("b", "1.0"), key("c", "1.0"), key("c", "1.1"),
	}, g.Keys())
}

func TestRunRewritesEdges(t *testing.T) {
	root := module(depgraph.RootKey, key("a", "1.0"), key("local", "1.0"), key("pinned", "1.0"))
	root.Name = "root"
	overrides := map[string]depgraph.Override{
		"local":  depgraph.LocalPathOverride{Path: "/src/local"},
		"pinned": depgraph.SingleVersionOverride{Version: "2.0"},
	}
	r := newRegistry(
		module(key("a", "1.0"), key("root", "0.1"), key("pinned", "1.5")),
		module(key("local", "")),
		module(key("pinned", "2.0")),
	)

	g, _ := drive(t, root, overrides, r)

	rootNode := g.Root()
	assert.Equal(t, key("local", ""), rootNode.Deps[1].Key())
	assert.Equal(t, key("pinned", "2.0"), rootNode.Deps[2].Key())

	a, ok := g.Get(key("a", "1.0"))
	require.True(t, ok)
	assert.Equal(t, depgraph.RootKey, a.Deps[0].Key(), "a dependency on the root's name points at the root")
	assert.Equal(t, "root", a.Deps[0].RepoName)
	assert.Equal(t, key("pinned", "2.0"), a.Deps[1].Key())

	assert.NotContains(t, r.lookups, key("root", "0.1"))
	assert.Equal(t, "1.0", root.Deps[2].Version, "the input node is not modified")
}

func TestRunLooksEachKeyUpOncePerAttempt(t *testing.T) {
	root := module(depgraph.RootKey, key("a", "1.0"), key("b", "1.0"))
	r := newRegistry(module(key("a", "1.0"), key("b", "1.0")), module(key("b", "1.0")))

	drive(t, root, nil, r)
	counts := map[depgraph.ModuleKey]int{}
	for _, k := range r.lookups {
		counts[k]++
	}
	assert.Equal(t, 2, counts[key("a", "1.0")])
	assert.Equal(t, 2, counts[key("b", "1.0")])
}

func TestRunInvalidVersion(t *testing.T) {
	root := module(depgraph.RootKey, key("a", "1..0"))
	_, err := Run(root, nil, newRegistry().lookup)
	require.Error(t, err)
	assert.Equal(t, depgraph.InvalidVersion, depgraph.CodeOf(err))
}

func TestRunInvalidCompatibilityPredicate(t *testing.T) {
	root := module(depgraph.RootKey)
	root.BazelCompatibility = []string{">5.1.0dd"}
	_, err := Run(root, nil, newRegistry().lookup)
	require.Error(t, err)
	assert.Equal(t, depgraph.InvalidVersion, depgraph.CodeOf(err))
	assert.Contains(t, err.Error(), "invalid version argument '>5.1.0dd'")
}

func TestRunPropagatesLookupFailure(t *testing.T) {
	root := module(depgraph.RootKey, key("a", "1.0"))
	fail := func(depgraph.ModuleKey) (*depgraph.InterimModule, bool, error) {
		return nil, false, depgraph.Errorf(depgraph.UnknownModule, "module not found in registries: a@1.0")
	}
	_, err := Run(root, nil, fail)
	assert.Equal(t, depgraph.UnknownModule, depgraph.CodeOf(err))
}
