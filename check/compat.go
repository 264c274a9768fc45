package check

import (
	"fmt"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

var predicatePattern = regexp.MustCompile(`^(>=|<=|>|<|-)(\d+\.\d+\.\d+)$`)

// Predicate is one bazel_compatibility entry, e.g. ">=7.0.0" or "-7.1.0".
type Predicate struct {
	Op      string
	Version *goversion.Version
}

// ParsePredicate parses a single compatibility predicate.
func ParsePredicate(s string) (Predicate, error) {
	m := predicatePattern.FindStringSubmatch(s)
	if m == nil {
		return Predicate{}, depgraph.Errorf(depgraph.InvalidVersion, "invalid version argument '%s'", s)
	}
	v, err := goversion.NewVersion(m[2])
	if err != nil {
		return Predicate{}, depgraph.Errorf(depgraph.InvalidVersion, "invalid version argument '%s': %v", s, err)
	}
	return Predicate{Op: m[1], Version: v}, nil
}

// ParsePredicates parses a module's bazel_compatibility list, failing on the
// first malformed entry.
func ParsePredicates(list []string) ([]Predicate, error) {
	out := make([]Predicate, 0, len(list))
	for _, s := range list {
		p, err := ParsePredicate(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Allows reports whether v satisfies the predicate. "-X" excludes exactly X.
func (p Predicate) Allows(v *goversion.Version) bool {
	c := v.Compare(p.Version)
	switch p.Op {
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case "<":
		return c < 0
	case "-":
		return c != 0
	}
	return false
}

func (p Predicate) String() string {
	return p.Op + p.Version.Original()
}

// Compatibility checks every module of g that declares bazel_compatibility
// against toolVersion. In Warning mode findings are returned as warnings; in
// Error mode the first incompatible module, in graph order, fails with
// COMPATIBILITY_FAILURE. An empty or unparsable tool version (a development
// build) skips the check.
func Compatibility(g *depgraph.DepGraph[*depgraph.Module], toolVersion string, mode Mode) ([]string, error) {
	if mode == Off || toolVersion == "" {
		return nil, nil
	}
	current, err := goversion.NewVersion(toolVersion)
	if err != nil {
		return nil, nil
	}

	var warnings []string
	for _, m := range g.All() {
		if len(m.BazelCompatibility) == 0 {
			continue
		}
		preds, err := ParsePredicates(m.BazelCompatibility)
		if err != nil {
			return nil, err
		}
		if allowsAll(preds, current) {
			continue
		}
		msg := fmt.Sprintf("Bazel version %s is not compatible with module \"%s\" (bazel_compatibility: [%s])",
			toolVersion, m.Display(), strings.Join(m.BazelCompatibility, ", "))
		if mode == Error {
			return nil, depgraph.Errorf(depgraph.CompatibilityFailure, "%s", msg)
		}
		warnings = append(warnings, msg)
	}
	return warnings, nil
}

func allowsAll(preds []Predicate, v *goversion.Version) bool {
	for _, p := range preds {
		if !p.Allows(v) {
			return false
		}
	}
	return true
}
