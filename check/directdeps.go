package check

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

// DirectDeps compares the versions the root module asks for with the ones
// selection picked. declared is the root node of the un-pruned graph and
// resolved the root of the pruned graph. Dependencies without a version
// (non-registry overrides) are not checked. In Error mode every mismatch is
// reported in one DIRECT_DEPS_MISMATCH error.
func DirectDeps(declared *depgraph.InterimModule, resolved *depgraph.Module, mode Mode) ([]string, error) {
	if mode == Off {
		return nil, nil
	}
	var msgs []string
	for _, spec := range declared.Deps {
		if spec.Version == "" {
			continue
		}
		dep, ok := resolved.DepByRepoName(spec.RepoName)
		if !ok || dep.Key == spec.Key() {
			continue
		}
		msgs = append(msgs, fmt.Sprintf(
			"For repository '%s', the root module requires module version %s, but got %s in the resolved dependency graph.",
			spec.RepoName, spec.Key(), dep.Key))
	}
	if mode == Warning || len(msgs) == 0 {
		return msgs, nil
	}

	var errs *multierror.Error
	for _, m := range msgs {
		errs = multierror.Append(errs, fmt.Errorf("%s", m))
	}
	return nil, depgraph.Errorf(depgraph.DirectDepsMismatch,
		"%s\nPlease update the versions in your MODULE.bazel or set --check_direct_dependencies=off", errs.Error())
}
