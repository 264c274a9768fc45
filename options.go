package bzlresolve

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/albertocavalcante/go-bzlresolve/check"
	"github.com/albertocavalcante/go-bzlresolve/eval"
	"github.com/albertocavalcante/go-bzlresolve/lockfile"
	"github.com/albertocavalcante/go-bzlresolve/registry"
)

// Option configures a Resolver.
type Option func(*config) error

// DefaultNativeRepoRules are the repository rules that are not defined in
// a .bzl file.
var DefaultNativeRepoRules = []string{
	"local_repository",
	"new_local_repository",
	"local_config_platform",
	"android_sdk_repository",
	"android_ndk_repository",
}

// config holds all resolution configuration.
type config struct {
	workspace    string
	rootContent  []byte
	rootFilename string

	registries []string
	loader     ModuleLoader
	httpClient *http.Client
	timeout    time.Duration

	toolVersion    string
	compatMode     check.Mode
	allowYanked    []string
	envAllowYanked string
	directDepsMode check.Mode
	ignoreDevDeps  bool

	lockfileMode lockfile.Mode
	lockfilePath string

	extensions  ExtensionEvaluator
	legacy      LegacyRepos
	nativeRules map[string]bool

	logger      *log.Logger
	parallelism int
}

// WithWorkspace sets the workspace directory. The root MODULE.bazel is read
// from it unless WithRootModuleFile is given, relative local_path_override
// paths resolve against it and the lockfile is written to it.
func WithWorkspace(dir string) Option {
	return func(c *config) error {
		c.workspace = dir
		return nil
	}
}

// WithRootModuleFile sets the content of the root MODULE.bazel.
func WithRootModuleFile(filename string, content []byte) Option {
	return func(c *config) error {
		c.rootFilename = filename
		c.rootContent = content
		return nil
	}
}

// WithRegistries sets the registry URLs, in priority order.
func WithRegistries(urls ...string) Option {
	return func(c *config) error {
		c.registries = append(c.registries, urls...)
		return nil
	}
}

// WithModuleLoader replaces the registry-backed module loader.
func WithModuleLoader(l ModuleLoader) Option {
	return func(c *config) error {
		c.loader = l
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for registry requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) error {
		c.httpClient = client
		return nil
	}
}

// WithTimeout sets the timeout of each registry request.
func WithTimeout(d time.Duration) Option {
	return func(c *config) error {
		c.timeout = d
		return nil
	}
}

// WithToolVersion sets the Bazel version bazel_compatibility is checked
// against. An empty version skips the check.
func WithToolVersion(version string) Option {
	return func(c *config) error {
		c.toolVersion = version
		return nil
	}
}

// WithCompatibilityMode sets what a failed bazel_compatibility check does.
func WithCompatibilityMode(m check.Mode) Option {
	return func(c *config) error {
		c.compatMode = m
		return nil
	}
}

// WithAllowYankedVersions allows yanked versions: "all" or "name@version"
// entries.
func WithAllowYankedVersions(entries ...string) Option {
	return func(c *config) error {
		c.allowYanked = append(c.allowYanked, entries...)
		return nil
	}
}

// WithEnvAllowedYankedVersions adds the comma separated value of the
// BZLMOD_ALLOW_YANKED_VERSIONS environment variable to the allow-list.
func WithEnvAllowedYankedVersions(value string) Option {
	return func(c *config) error {
		c.envAllowYanked = value
		return nil
	}
}

// WithDirectDepsMode sets what a direct dependency resolved to another
// version than the root module asks for does.
func WithDirectDepsMode(m check.Mode) Option {
	return func(c *config) error {
		c.directDepsMode = m
		return nil
	}
}

// WithIgnoreDevDependencies drops the root module's dev dependencies.
func WithIgnoreDevDependencies(ignore bool) Option {
	return func(c *config) error {
		c.ignoreDevDeps = ignore
		return nil
	}
}

// WithLockfileMode sets how MODULE.bazel.lock is used. An empty path means
// the workspace's lockfile.
func WithLockfileMode(m lockfile.Mode, path string) Option {
	return func(c *config) error {
		c.lockfileMode = m
		c.lockfilePath = path
		return nil
	}
}

// WithExtensionEvaluator sets the evaluator of module extensions. Without
// one, repositories generated by extensions cannot be looked up.
func WithExtensionEvaluator(e ExtensionEvaluator) Option {
	return func(c *config) error {
		c.extensions = e
		return nil
	}
}

// WithLegacyRepos declares repositories defined outside the module graph.
func WithLegacyRepos(l LegacyRepos) Option {
	return func(c *config) error {
		c.legacy = l
		return nil
	}
}

// WithNativeRepoRules replaces the set of repository rules accepted without
// a .bzl file.
func WithNativeRepoRules(rules ...string) Option {
	return func(c *config) error {
		c.nativeRules = make(map[string]bool, len(rules))
		for _, r := range rules {
			c.nativeRules[r] = true
		}
		return nil
	}
}

// WithLogger sets the logger for resolution diagnostics. If not set,
// logging is disabled.
func WithLogger(l *log.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

// WithParallelism bounds how many inputs of one computation are evaluated
// concurrently.
func WithParallelism(n int) Option {
	return func(c *config) error {
		c.parallelism = n
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *config) validate() error {
	if c.rootContent == nil && c.workspace == "" {
		return errors.New("either a workspace or the root module file content is required")
	}
	if c.timeout < 0 {
		return errors.New("timeout must be positive")
	}
	if c.parallelism < 0 {
		return errors.New("parallelism must be positive")
	}
	return nil
}

// allowList returns the allow-list entries from options and the
// environment, in that order.
func (c *config) allowList() []string {
	entries := append([]string(nil), c.allowYanked...)
	for _, e := range strings.Split(c.envAllowYanked, ",") {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

func (c *config) lockfileFlags() lockfile.Flags {
	return lockfile.Flags{
		CmdRegistries:               c.registries,
		IgnoreDevDependency:         c.ignoreDevDeps,
		AllowedYankedVersions:       c.allowYanked,
		EnvVarAllowedYankedVersions: c.envAllowYanked,
		DirectDependenciesMode:      c.directDepsMode.String(),
		CompatibilityMode:           c.compatMode.String(),
	}
}

func (c *config) registryOptions() []registry.ClientOption {
	opts := []registry.ClientOption{registry.WithLogger(c.logger)}
	if c.httpClient != nil {
		opts = append(opts, registry.WithHTTPClient(c.httpClient))
	}
	if c.timeout > 0 {
		opts = append(opts, registry.WithTimeout(c.timeout))
	}
	return opts
}

// newConfig applies opts over the defaults and validates the result.
func newConfig(opts ...Option) (*config, error) {
	c := &config{
		compatMode:     check.Error,
		directDepsMode: check.Warning,
		lockfileMode:   lockfile.Update,
		parallelism:    eval.DefaultParallelism,
		rootFilename:   "MODULE.bazel",
	}
	WithNativeRepoRules(DefaultNativeRepoRules...)(c) //nolint:errcheck // never fails

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	if len(c.registries) == 0 {
		c.registries = []string{registry.DefaultURL}
	}
	if c.lockfilePath == "" && c.workspace != "" {
		c.lockfilePath = lockfile.DefaultPath(c.workspace)
	}
	return c, nil
}
