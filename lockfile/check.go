package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

// Reasons returns why old is out of date with respect to fresh, in a fixed
// order. An up-to-date lockfile has no reasons; a missing one has one.
func Reasons(old, fresh *Lockfile) []string {
	if old == nil {
		return []string{"the lockfile does not exist"}
	}

	var reasons []string
	if old.Version != fresh.Version {
		reasons = append(reasons, fmt.Sprintf("the version of the lockfile is not compatible with the current tool (%d, want %d)", old.Version, fresh.Version))
	}
	if old.ModuleFileHash != fresh.ModuleFileHash {
		reasons = append(reasons, "the root MODULE.bazel has been modified")
	}
	reasons = append(reasons, flagReasons(old.Flags, fresh.Flags)...)
	if !maps.Equal(old.RegistryFileHashes, fresh.RegistryFileHashes) {
		reasons = append(reasons, "the registry files used have changed: "+describeHashDiff(old.RegistryFileHashes, fresh.RegistryFileHashes))
	}
	if !maps.Equal(old.SelectedYankedVersions, fresh.SelectedYankedVersions) {
		reasons = append(reasons, "the set of selected yanked versions has changed")
	}
	if !sameJSON(old.ModuleDepGraph, fresh.ModuleDepGraph) {
		reasons = append(reasons, "the resolved dependency graph has changed")
	}
	return reasons
}

func flagReasons(old, fresh Flags) []string {
	var reasons []string
	changed := func(flag string) {
		reasons = append(reasons, fmt.Sprintf("the value of --%s flag has been modified", flag))
	}
	if !slices.Equal(old.CmdRegistries, fresh.CmdRegistries) {
		changed("registry")
	}
	if old.IgnoreDevDependency != fresh.IgnoreDevDependency {
		changed("ignore_dev_dependency")
	}
	if !slices.Equal(old.AllowedYankedVersions, fresh.AllowedYankedVersions) {
		changed("allow_yanked_versions")
	}
	if old.EnvVarAllowedYankedVersions != fresh.EnvVarAllowedYankedVersions {
		reasons = append(reasons, "the value of BZLMOD_ALLOW_YANKED_VERSIONS environment variable has been modified")
	}
	if old.DirectDependenciesMode != fresh.DirectDependenciesMode {
		changed("check_direct_dependencies")
	}
	if old.CompatibilityMode != fresh.CompatibilityMode {
		changed("check_bazel_compatibility")
	}
	return reasons
}

// describeHashDiff names up to three changed URLs.
func describeHashDiff(old, fresh map[string]string) string {
	var urls []string
	for url, h := range fresh {
		if old[url] != h {
			urls = append(urls, url)
		}
	}
	for url := range old {
		if _, ok := fresh[url]; !ok {
			urls = append(urls, url)
		}
	}
	slices.Sort(urls)
	if len(urls) > 3 {
		return strings.Join(urls[:3], ", ") + fmt.Sprintf(" and %d more", len(urls)-3)
	}
	return strings.Join(urls, ", ")
}

// sameJSON compares through the JSON form so parsed and freshly built
// values (float64 vs int attributes) compare equal.
func sameJSON(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	var va, vb any
	if json.Unmarshal(ja, &va) != nil || json.Unmarshal(jb, &vb) != nil {
		return false
	}
	na, _ := json.Marshal(va)
	nb, _ := json.Marshal(vb)
	return bytes.Equal(na, nb)
}

// Apply uses fresh according to mode. It reports whether the file at path
// was written. In Error mode an out-of-date lockfile fails with
// LOCKFILE_MISMATCH.
func Apply(mode Mode, path string, fresh *Lockfile) (bool, error) {
	if mode == Off {
		return false, nil
	}

	old, err := ReadFile(path)
	if err != nil {
		return false, err
	}
	reasons := Reasons(old, fresh)

	switch mode {
	case Error:
		if len(reasons) > 0 {
			return false, depgraph.Errorf(depgraph.LockfileMismatch,
				"Lock file is no longer up-to-date because: %s. Please run `bzlresolve resolve --lockfile_mode=update` to update your lockfile.",
				strings.Join(reasons, ", "))
		}
		return false, nil
	default:
		if len(reasons) == 0 {
			return false, nil
		}
		if err := fresh.WriteFile(path); err != nil {
			return false, fmt.Errorf("failed to write lockfile: %w", err)
		}
		return true, nil
	}
}
