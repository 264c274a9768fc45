package graph

import (
	"bytes"
	"fmt"
	"strings"
)

const separatorWidth = 60

// ToDOT outputs the graph in Graphviz DOT format, nodes and edges in graph
// order.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	for _, key := range g.order {
		node := g.Modules[key]
		label := fmt.Sprintf("%s\\n%s", key.Name, key.Version)
		attrs := fmt.Sprintf(`label="%s"`, label) //nolint:gocritic // DOT format requires this quote style
		if node.IsRoot {
			attrs += ", style=bold"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", key.String(), attrs)
	}

	buf.WriteString("\n")

	for _, key := range g.order {
		for _, dep := range g.Modules[key].Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q;\n", key.String(), dep.String())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ToText outputs the graph as a summary followed by a dependency tree.
func (g *Graph) ToText() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Dependency Graph (root: %s)\n", g.Root.String())
	buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

	stats := g.Stats()
	fmt.Fprintf(&buf, "Total modules: %d\n", stats.TotalModules)
	fmt.Fprintf(&buf, "Direct dependencies: %d\n", stats.DirectDependencies)
	fmt.Fprintf(&buf, "Transitive dependencies: %d\n", stats.TransitiveDependencies)
	fmt.Fprintf(&buf, "Max depth: %d\n\n", stats.MaxDepth)

	buf.WriteString("Dependency Tree:\n")
	g.printTree(&buf, g.Root, "", true, make(map[ModuleKey]bool), make(map[ModuleKey]bool))

	return buf.String()
}

// printTree expands every module once; later occurrences are marked
// "(*)" and cycles "(cycle)".
func (g *Graph) printTree(buf *bytes.Buffer, key ModuleKey, prefix string, isLast bool, onPath, expanded map[ModuleKey]bool) {
	connector := "├── "
	if isLast {
		connector = "└── "
	}
	if key == g.Root {
		buf.WriteString(key.String())
	} else {
		buf.WriteString(prefix + connector + key.String())
	}

	switch {
	case onPath[key]:
		buf.WriteString(" (cycle)\n")
		return
	case expanded[key]:
		buf.WriteString(" (*)\n")
		return
	}
	buf.WriteString("\n")

	node := g.Modules[key]
	if node == nil {
		return
	}
	expanded[key] = true
	onPath[key] = true
	defer delete(onPath, key)

	childPrefix := prefix
	if key != g.Root {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "│   "
		}
	}
	for i, dep := range node.Dependencies {
		g.printTree(buf, dep, childPrefix, i == len(node.Dependencies)-1, onPath, expanded)
	}
}

// ToExplainText outputs a human-readable explanation for a module.
func (g *Graph) ToExplainText(moduleName string) (string, error) {
	explanations, err := g.Explain(moduleName)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for i, explanation := range explanations {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "Explanation for: %s\n", explanation.Module.String())
		buf.WriteString(strings.Repeat("=", separatorWidth) + "\n\n")

		if sel := explanation.Selection; sel != nil {
			buf.WriteString("Version Selection:\n")
			fmt.Fprintf(&buf, "  Selected version: %s\n", sel.SelectedVersion)
			fmt.Fprintf(&buf, "  Strategy: %s\n", sel.Strategy)
			fmt.Fprintf(&buf, "  Deciding factor: %s\n", sel.DecidingFactor)

			if len(sel.Candidates) > 0 {
				buf.WriteString("\n  Candidates considered:\n")
				for _, c := range sel.Candidates {
					status := "  "
					if c.Selected {
						status = "✓ "
					}
					requesters := make([]string, len(c.RequestedBy))
					for i, r := range c.RequestedBy {
						requesters[i] = r.String()
					}
					fmt.Fprintf(&buf, "    %s%s - requested by: %s\n", status, c.Version, strings.Join(requesters, ", "))
					if !c.Selected && c.RejectionReason != "" {
						fmt.Fprintf(&buf, "      Reason not selected: %s\n", c.RejectionReason)
					}
				}
			}
		}

		if len(explanation.DependencyChains) > 0 {
			buf.WriteString("\nDependency Chains (paths from root):\n")
			for i, chain := range explanation.DependencyChains {
				fmt.Fprintf(&buf, "  %d. %s\n", i+1, chain.String())
			}
		}
	}
	return buf.String(), nil
}
