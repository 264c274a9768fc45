package selection

import (
	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

// Result contains the output of the selection algorithm.
type Result struct {
	// Resolved is the pruned graph: selected modules reachable from the
	// root, with edges pointing at the selected versions, in BFS order.
	Resolved *depgraph.DepGraph[*depgraph.Module]

	// Unpruned keeps every discovered module, including unselected and
	// unreachable ones, with edges rewritten the same way. Extension
	// evaluation reads tags from it.
	Unpruned *depgraph.DepGraph[*depgraph.InterimModule]
}

// Group identifies the module versions that compete for selection. One
// version is selected per group.
type Group struct {
	ModuleName  string
	CompatLevel int
	// TargetAllowedVersion is set only for modules with a multiple version
	// override: the lowest allowed version no lower than the module's own.
	TargetAllowedVersion string
}
