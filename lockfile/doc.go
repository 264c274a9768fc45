// Package lockfile reads, writes and checks MODULE.bazel.lock.
//
// The lockfile captures one resolution: the resolved module graph in BFS
// order, the flags that influenced it, the hashes of every registry file
// fetched, and the yanked versions that were explicitly allowed. It is
// written with deterministic formatting so identical resolutions produce
// byte-identical files.
//
// # Modes
//
//   - OFF: the lockfile is neither read nor written.
//   - UPDATE: the lockfile is rewritten when its content changed.
//   - ERROR: a lockfile that differs from the fresh resolution fails with
//     LOCKFILE_MISMATCH, listing why it is out of date.
//
// # Usage
//
//	lf := lockfile.New(lockfile.Input{ModuleFile: content, Graph: resolved})
//	changed, err := lockfile.Apply(lockfile.Update, "MODULE.bazel.lock", lf)
package lockfile
