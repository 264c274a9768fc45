package graph

import (
	"slices"
	"strings"
	"testing"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/selection"
)

func key(name, ver string) ModuleKey {
	return ModuleKey{Name: name, Version: ver}
}

func module(k ModuleKey, deps ...ModuleKey) *depgraph.InterimModule {
	m := &depgraph.InterimModule{Key: k, Name: k.Name, Version: k.Version, RepoName: k.Name}
	if k == depgraph.RootKey {
		m.Name, m.Version, m.RepoName = "root", "1.0.0", "root"
	}
	for _, d := range deps {
		m.Deps = append(m.Deps, depgraph.DepSpec{RepoName: d.Name, Name: d.Name, Version: d.Version, MaxCompatibilityLevel: -1})
	}
	return m
}

// buildGraph runs selection over the discovered modules and builds the
// graph from the result.
func buildGraph(t *testing.T, overrides map[string]depgraph.Override, modules ...*depgraph.InterimModule) *Graph {
	t.Helper()
	order := make([]ModuleKey, 0, len(modules))
	byKey := make(map[ModuleKey]*depgraph.InterimModule, len(modules))
	for _, m := range modules {
		order = append(order, m.Key)
		byKey[m.Key] = m
	}
	discovered, err := depgraph.NewDepGraph(order, byKey)
	if err != nil {
		t.Fatalf("NewDepGraph failed: %v", err)
	}
	result, err := selection.Run(discovered, overrides)
	if err != nil {
		t.Fatalf("selection failed: %v", err)
	}
	return Build(discovered, result.Resolved, overrides)
}

// Helper to create a test graph:
//
//	<root>
//	├── a@1.0
//	│   └── c@1.0 (selected: c@2.0)
//	└── b@1.0
//	    └── c@2.0
func createTestGraph(t *testing.T) *Graph {
	return buildGraph(t, nil,
		module(depgraph.RootKey, key("a", "1.0"), key("b", "1.0")),
		module(key("a", "1.0"), key("c", "1.0")),
		module(key("b", "1.0"), key("c", "2.0")),
		module(key("c", "1.0")),
		module(key("c", "2.0")),
	)
}

func TestBuild(t *testing.T) {
	g := createTestGraph(t)

	if g.Root != depgraph.RootKey {
		t.Errorf("unexpected root: %v", g.Root)
	}
	if len(g.Modules) != 4 {
		t.Errorf("expected 4 modules, got %d", len(g.Modules))
	}
	want := []ModuleKey{depgraph.RootKey, key("a", "1.0"), key("b", "1.0"), key("c", "2.0")}
	if got := g.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	root := g.Get(g.Root)
	if root == nil || !root.IsRoot {
		t.Fatal("root node missing or not marked")
	}
	if g.Get(key("c", "1.0")) != nil {
		t.Error("c@1.0 was not selected and must not be in the graph")
	}

	c := g.Get(key("c", "2.0"))
	if got := c.Dependents; !slices.Equal(got, []ModuleKey{key("a", "1.0"), key("b", "1.0")}) {
		t.Errorf("c dependents = %v", got)
	}
	if c.RequestedVersions[key("a", "1.0")] != "1.0" || c.RequestedVersions[key("b", "1.0")] != "2.0" {
		t.Errorf("c requested versions = %v", c.RequestedVersions)
	}
}

func TestSelectionInfo_Highest(t *testing.T) {
	g := createTestGraph(t)
	sel := g.Get(key("c", "2.0")).Selection

	if sel.Strategy != StrategyHighest {
		t.Errorf("Strategy = %s", sel.Strategy)
	}
	if sel.DecidingFactor != "highest version among candidates" {
		t.Errorf("DecidingFactor = %q", sel.DecidingFactor)
	}
	if len(sel.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", sel.Candidates)
	}
	low, high := sel.Candidates[0], sel.Candidates[1]
	if low.Version != "1.0" || low.Selected || low.RejectionReason == "" {
		t.Errorf("low candidate = %+v", low)
	}
	if high.Version != "2.0" || !high.Selected || !slices.Equal(high.RequestedBy, []ModuleKey{key("b", "1.0")}) {
		t.Errorf("high candidate = %+v", high)
	}

	if got := g.Get(key("a", "1.0")).Selection.DecidingFactor; got != "only version requested" {
		t.Errorf("a DecidingFactor = %q", got)
	}
	if got := g.Get(g.Root).Selection.Strategy; got != StrategyRoot {
		t.Errorf("root Strategy = %s", got)
	}
}

func TestSelectionInfo_MultipleVersionOverride(t *testing.T) {
	g := buildGraph(t,
		map[string]depgraph.Override{"c": depgraph.MultipleVersionOverride{Versions: []string{"1.0", "2.0"}}},
		module(depgraph.RootKey, key("a", "1.0"), key("b", "1.0")),
		module(key("a", "1.0"), key("c", "1.0")),
		module(key("b", "1.0"), key("c", "2.0")),
		module(key("c", "1.0")),
		module(key("c", "2.0")),
	)

	nodes := g.ByName("c")
	if len(nodes) != 2 {
		t.Fatalf("ByName(c) returned %d nodes", len(nodes))
	}
	for _, n := range nodes {
		if n.Selection.Strategy != StrategyMultipleVersion {
			t.Errorf("%s Strategy = %s", n.Key, n.Selection.Strategy)
		}
		for _, c := range n.Selection.Candidates {
			if c.Selected != (c.Version == n.Key.Version) {
				t.Errorf("%s candidate %+v", n.Key, c)
			}
		}
	}
}

func TestSelectionInfo_NonRegistry(t *testing.T) {
	g := buildGraph(t,
		map[string]depgraph.Override{"c": depgraph.LocalPathOverride{Path: "/src/c"}},
		module(depgraph.RootKey, key("c", "")),
		module(key("c", "")),
	)

	sel := g.Get(key("c", "")).Selection
	if sel.Strategy != StrategyNonRegistry {
		t.Errorf("Strategy = %s", sel.Strategy)
	}
	if !strings.Contains(sel.DecidingFactor, "local_path_override") {
		t.Errorf("DecidingFactor = %q", sel.DecidingFactor)
	}
}

func TestDirectAndTransitiveDeps(t *testing.T) {
	g := createTestGraph(t)

	if got := g.DirectDeps(g.Root); !slices.Equal(got, []ModuleKey{key("a", "1.0"), key("b", "1.0")}) {
		t.Errorf("DirectDeps(root) = %v", got)
	}
	if got := g.TransitiveDeps(g.Root); len(got) != 3 {
		t.Errorf("TransitiveDeps(root) = %v", got)
	}
	if got := g.TransitiveDeps(key("c", "2.0")); len(got) != 0 {
		t.Errorf("TransitiveDeps(c) = %v", got)
	}
	want := []ModuleKey{key("a", "1.0"), key("b", "1.0"), depgraph.RootKey}
	if got := g.TransitiveDependents(key("c", "2.0")); !slices.Equal(got, want) {
		t.Errorf("TransitiveDependents(c) = %v, want %v", got, want)
	}
	if got := g.DirectDeps(key("missing", "1.0")); got != nil {
		t.Errorf("DirectDeps(missing) = %v", got)
	}
}

func TestPath(t *testing.T) {
	g := createTestGraph(t)

	want := []ModuleKey{depgraph.RootKey, key("a", "1.0"), key("c", "2.0")}
	if got := g.Path(g.Root, key("c", "2.0")); !slices.Equal(got, want) {
		t.Errorf("Path(root, c) = %v, want %v", got, want)
	}
	if got := g.Path(key("c", "2.0"), g.Root); got != nil {
		t.Errorf("Path(c, root) = %v, want nil", got)
	}
	if got := g.Path(g.Root, g.Root); len(got) != 1 {
		t.Errorf("Path(root, root) = %v", got)
	}
}

func TestExplain(t *testing.T) {
	g := createTestGraph(t)

	explanations, err := g.Explain("c")
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if len(explanations) != 1 {
		t.Fatalf("expected 1 explanation, got %d", len(explanations))
	}
	e := explanations[0]
	if len(e.DependencyChains) != 2 {
		t.Fatalf("expected 2 chains, got %v", e.DependencyChains)
	}
	if got := e.DependencyChains[0].String(); got != "<root> -> a@1.0 -> c@2.0 (requested 1.0)" {
		t.Errorf("chain[0] = %q", got)
	}
	if got := e.DependencyChains[1].String(); got != "<root> -> b@1.0 -> c@2.0 (requested 2.0)" {
		t.Errorf("chain[1] = %q", got)
	}
	if !strings.Contains(e.RequestSummary, "2.0 requested by: b@1.0 [SELECTED]") {
		t.Errorf("RequestSummary = %q", e.RequestSummary)
	}

	if _, err := g.Explain("missing"); err == nil {
		t.Error("expected error for unknown module")
	}
}

func TestStats(t *testing.T) {
	stats := createTestGraph(t).Stats()
	want := Stats{TotalModules: 4, DirectDependencies: 2, TransitiveDependencies: 1, MaxDepth: 2}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestToText(t *testing.T) {
	text := createTestGraph(t).ToText()

	for _, want := range []string{
		"Dependency Graph (root: <root>)",
		"Total modules: 4",
		"├── a@1.0\n│   └── c@2.0\n",
		"└── b@1.0\n    └── c@2.0 (*)\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("ToText() missing %q:\n%s", want, text)
		}
	}
}

func TestToDOT(t *testing.T) {
	dot := createTestGraph(t).ToDOT()

	if !strings.HasPrefix(dot, "digraph dependencies {") {
		t.Errorf("unexpected DOT header:\n%s", dot)
	}
	for _, want := range []string{
		`"<root>" [label="<root>\n", style=bold];`,
		`"a@1.0" -> "c@2.0";`,
		`"b@1.0" -> "c@2.0";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q:\n%s", want, dot)
		}
	}
}

func TestToExplainText(t *testing.T) {
	text, err := createTestGraph(t).ToExplainText("c")
	if err != nil {
		t.Fatalf("ToExplainText failed: %v", err)
	}
	for _, want := range []string{
		"Explanation for: c@2.0",
		"Selected version: 2.0",
		"✓ 2.0 - requested by: b@1.0",
		"Reason not selected:",
		"1. <root> -> a@1.0 -> c@2.0 (requested 1.0)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("ToExplainText() missing %q:\n%s", want, text)
		}
	}
}
