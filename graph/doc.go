// Package graph provides a queryable view of a resolved module dependency
// graph.
//
// It backs the `bzlresolve graph` and `bzlresolve explain` commands:
//
//   - Visualize the resolved graph as a tree or in Graphviz DOT
//   - Explain why a module is at a particular version
//   - Find dependency paths between modules
//   - Query direct and transitive dependencies and dependents
//
// # Building a Graph
//
// A Graph combines the discovered graph, which still carries every version
// request, with the graph version selection produced:
//
//	g := graph.Build(discovered, result.Resolved, overrides)
//
// # Querying the Graph
//
//	deps := g.DirectDeps(key)
//	explanations, _ := g.Explain("rules_go")
//	path := g.Path(g.Root, key)
//
// # Output Formats
//
//	dot := g.ToDOT()
//	text := g.ToText()
package graph
