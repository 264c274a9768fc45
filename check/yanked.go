package check

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/selection/version"
)

// AllowAll is the allow-list entry that permits every yanked version.
const AllowAll = "all"

// AllowList is a parsed --allow_yanked_versions value.
type AllowList struct {
	all     bool
	entries map[depgraph.ModuleKey]bool
}

// ParseAllowList parses allow-list entries. Every malformed entry is
// reported, wrapped in a single MALFORMED_ALLOWLIST_ENTRY error.
func ParseAllowList(entries []string) (AllowList, error) {
	a := AllowList{entries: make(map[depgraph.ModuleKey]bool)}
	var errs *multierror.Error
	for _, e := range entries {
		if e == AllowAll {
			a.all = true
			continue
		}
		key, err := parseAllowEntry(e)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		a.entries[key] = true
	}
	if err := errs.ErrorOrNil(); err != nil {
		return AllowList{}, depgraph.Wrap(depgraph.MalformedAllowlistEntry, err)
	}
	return a, nil
}

func parseAllowEntry(e string) (depgraph.ModuleKey, error) {
	parts := strings.Split(e, "@")
	if len(parts) != 2 {
		return depgraph.ModuleKey{}, fmt.Errorf("Parsing command line flag --allow_yanked_versions=%s failed, module versions must be of the form '<module name>@<version>'", e)
	}
	if err := label.ValidateModuleName(parts[0]); err != nil {
		return depgraph.ModuleKey{}, fmt.Errorf("Parsing command line flag --allow_yanked_versions=%s failed, %v", e, err)
	}
	if _, err := version.Parse(parts[1]); err != nil {
		return depgraph.ModuleKey{}, fmt.Errorf("Parsing command line flag --allow_yanked_versions=%s failed, %v", e, err)
	}
	return depgraph.ModuleKey{Name: parts[0], Version: parts[1]}, nil
}

// AllowsAll reports whether the list contains "all". Yank metadata need not
// be fetched at all in that case.
func (a AllowList) AllowsAll() bool { return a.all }

// Allows reports whether key may be selected even if yanked.
func (a AllowList) Allows(key depgraph.ModuleKey) bool {
	return a.all || a.entries[key]
}

// Yanked fails with YANKED_VERSION on the first selected module, in graph
// order, that has a yank reason in reasons and is not allowed.
func Yanked(g *depgraph.DepGraph[*depgraph.Module], reasons map[depgraph.ModuleKey]string, allow AllowList) error {
	if allow.AllowsAll() {
		return nil
	}
	for key := range g.All() {
		reason, yanked := reasons[key]
		if !yanked || allow.Allows(key) {
			continue
		}
		return depgraph.Errorf(depgraph.YankedVersion,
			"Yanked version detected in your resolved dependency graph: %s, for the reason: %s.\n"+
				"Yanked versions may contain serious vulnerabilities and should not be used. "+
				"To fix this, use a bazel_dep on a newer version of this module. "+
				"To continue using this version, allow it using the --allow_yanked_versions flag "+
				"or the BZLMOD_ALLOW_YANKED_VERSIONS env variable.",
			key, reason)
	}
	return nil
}
