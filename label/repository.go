package label

import "fmt"

// RepositoryName is a canonical repository name. The main repository is the
// empty name.
type RepositoryName string

// Well-known repositories.
const (
	Main       RepositoryName = ""
	BazelTools RepositoryName = "bazel_tools"
	Builtins   RepositoryName = "_builtins"

	localConfigPlatform RepositoryName = "local_config_platform"
)

// wellKnown lists modules whose canonical repository name is their module
// name, regardless of version.
var wellKnown = map[string]RepositoryName{
	"bazel_tools":           BazelTools,
	"local_config_platform": localConfigPlatform,
}

// WellKnownRepo returns the fixed canonical name of a well-known module.
func WellKnownRepo(moduleName string) (RepositoryName, bool) {
	r, ok := wellKnown[moduleName]
	return r, ok
}

// NewRepositoryName validates a canonical repository name.
func NewRepositoryName(name string) (RepositoryName, error) {
	if !canonicalRepoRegex.MatchString(name) {
		return "", fmt.Errorf("invalid canonical repo name %q", name)
	}
	return RepositoryName(name), nil
}

// Name returns the bare name.
func (r RepositoryName) Name() string { return string(r) }

// IsMain reports whether r is the main repository.
func (r RepositoryName) IsMain() bool { return r == Main }

// String renders r the way it is written in canonical labels ("@@name").
func (r RepositoryName) String() string { return "@@" + string(r) }
