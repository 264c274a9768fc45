// Package bzlresolve resolves Bazel module (bzlmod) dependency graphs and
// names the repositories they produce.
//
// Resolution runs as a set of memoized computations that may suspend on
// inputs that are not available yet (see package eval). Each computation has
// a key type in this package:
//
//   - RootModuleFileKey and ModuleFileKey load module files
//   - DiscoveryKey walks bazel_dep edges into the un-pruned graph
//   - ResolutionKey selects versions and checks bazel_compatibility,
//     yanked versions and the root module's direct dependencies
//   - DepGraphKey assigns canonical repository names
//   - RepoRuleKey finds the rule defining a canonical repository
//   - RepoMappingKey computes what a repository's apparent names mean
//
// # Quick Start
//
//	r, err := bzlresolve.New(
//	    bzlresolve.WithWorkspace("."),
//	    bzlresolve.WithToolVersion("7.4.1"),
//	)
//	if err != nil {
//	    return err
//	}
//	result, err := r.Resolve(ctx)
//	for key := range result.Resolved.All() {
//	    fmt.Println(key)
//	}
//
// # Registries
//
// By default the Bazel Central Registry is used. Registries are asked in
// order; the first one that has a module version serves it:
//
//	bzlresolve.WithRegistries("https://registry.example.com", registry.DefaultURL)
//
// # Failures
//
// Resolution failures are *depgraph.Error values carrying a code, for
// example VERSION_RESOLUTION_FAILURE or YANKED_VERSION. They are persistent:
// the same inputs always fail the same way.
//
// # Thread Safety
//
// A Resolver is safe for concurrent use.
package bzlresolve
