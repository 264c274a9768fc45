// Package selection implements module version selection over the graph
// produced by discovery.
//
// # Basic Case
//
// Every module name forms a selection group and the highest version present
// in the un-pruned graph wins. If foo@1.5 is selected, every edge to any
// other foo@X is rewritten to foo@1.5.
//
// # Unreachable Module Removal
//
// After rewriting, a breadth-first walk from the root collects the modules
// still reachable. Everything else is pruned from the resolved graph but
// stays in the un-pruned one. The walk order is the order of the resolved
// graph, which keeps lockfiles and hashes reproducible.
//
// # Compatibility Levels
//
// Versions with different compatibility levels are selected separately
// (groups are split by level), but at most one of them may remain reachable.
// A dependency may opt into higher levels with max_compatibility_level; the
// selector then enumerates every combination of candidate resolutions and
// keeps the first that walks without conflict.
//
// # Multiple-Version Overrides
//
// With allowed versions [1.3, 1.5, 2.0] for foo, groups are further split
// by target allowed version: a request for foo@1.0 becomes foo@1.3 and a
// request for foo@1.4 becomes foo@1.5. A request above every allowed version
// (foo@2.2) is an error unless it becomes unreachable.
//
// # Single-Version and Non-Registry Overrides
//
// Both are applied by discovery, which rewrites the affected edges before
// this package sees them, so only one version of such a module exists here.
package selection
