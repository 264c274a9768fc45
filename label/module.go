// Package label provides the name grammars used by module resolution:
// module names, apparent repository names, canonical repository names and
// labels.
//
// # Namespaces
//
// An apparent name is what a module's own files write after "@"; it only
// means something relative to the repository doing the writing. A canonical
// [RepositoryName] is globally unique and is what apparent names resolve to
// through a repository mapping. Canonical names are written after "@@" in
// labels so the two namespaces never mix.
//
// # Validation Patterns
//
// Module names must match: [a-z]([a-z0-9._-]*[a-z0-9])?
// Apparent repository names must match: [a-zA-Z][a-zA-Z0-9._-]*
// Starlark identifiers must match: [a-zA-Z_][a-zA-Z0-9_]*
package label

import (
	"fmt"
	"regexp"
)

var (
	moduleNameRegex    = regexp.MustCompile(`^[a-z]([a-z0-9._-]*[a-z0-9])?$`)
	apparentRepoRegex  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9._-]*$`)
	canonicalRepoRegex = regexp.MustCompile(`^[a-zA-Z0-9._~+-]*$`)
	starlarkIdentRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidateModuleName checks a module name as declared by module() or bazel_dep().
func ValidateModuleName(name string) error {
	if name == "" {
		return fmt.Errorf("module name cannot be empty")
	}
	if !moduleNameRegex.MatchString(name) {
		return fmt.Errorf("invalid module name %q: must match pattern [a-z]([a-z0-9._-]*[a-z0-9])?", name)
	}
	return nil
}

// ValidateApparentRepo checks an apparent repository name. The builtins
// pseudo-repository is accepted even though it starts with an underscore.
func ValidateApparentRepo(name string) error {
	if name == "" {
		return fmt.Errorf("repo name cannot be empty")
	}
	if name == Builtins.Name() {
		return nil
	}
	if !apparentRepoRegex.MatchString(name) {
		return fmt.Errorf("invalid repo name %q: must match pattern [a-zA-Z][a-zA-Z0-9._-]*", name)
	}
	return nil
}

// ValidateIdentifier checks a Starlark identifier, such as an extension name
// or a tag class name.
func ValidateIdentifier(name string) error {
	if !starlarkIdentRegex.MatchString(name) {
		return fmt.Errorf("invalid Starlark identifier %q", name)
	}
	return nil
}
