// Package registry reads Bazel module registries.
//
// A registry follows a fixed layout, served over HTTP(S) or read from a
// file:// URL:
//
//	registry/
//	├── bazel_registry.json       # Registry configuration
//	└── modules/
//	    └── {name}/
//	        ├── metadata.json     # Versions and yanked versions
//	        └── {version}/
//	            ├── MODULE.bazel  # Module file
//	            └── source.json   # Source location (archive/git/local_path)
//
// A Client reads one registry and records the SHA-256 of every file it
// fetched, which lockfiles use to detect registry changes. A Chain asks its
// registries in order and serves a module from the first one that has it.
//
//	chain, err := registry.NewChain([]string{"https://bcr.bazel.build"})
//	content, client, err := chain.GetModuleFile(ctx, "rules_go", "0.41.0")
//	spec, err := client.RepoSpec(ctx, "rules_go", "0.41.0", "rules_go~")
package registry
