// Package cli implements the bzlresolve command-line interface.
//
// # Commands
//
//   - resolve: resolve the module graph and update the lockfile
//   - graph: print the resolved graph as a tree or in DOT format
//   - explain: show why a module resolved to its version
//   - mapping: print the repository mapping of a canonical repository
//   - repo: print the rule that defines a canonical repository
//
// Settings come from flags and, at lower precedence, from a
// .bzlresolve.toml file in the workspace.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	bzlresolve "github.com/albertocavalcante/go-bzlresolve"
	"github.com/albertocavalcante/go-bzlresolve/check"
	"github.com/albertocavalcante/go-bzlresolve/lockfile"
)

// AllowYankedEnvVar holds yanked versions allowed in addition to
// --allow_yanked_versions.
const AllowYankedEnvVar = "BZLMOD_ALLOW_YANKED_VERSIONS"

// CLI holds state shared by all commands.
type CLI struct {
	out    io.Writer
	logger *log.Logger
	getenv func(string) string

	workspace  string
	configPath string
	verbose    bool

	registries   []string
	bazelVersion string
	compatMode   check.Mode
	directDeps   check.Mode
	allowYanked  []string
	lockfileMode lockfile.Mode
	ignoreDev    bool
}

// New creates a CLI that prints results to out and logs to errOut.
func New(out, errOut io.Writer) *CLI {
	return &CLI{
		out:          out,
		logger:       newLogger(errOut, log.InfoLevel),
		getenv:       os.Getenv,
		compatMode:   check.Error,
		directDeps:   check.Warning,
		lockfileMode: lockfile.Update,
	}
}

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bzlresolve",
		Short:         "Resolve Bazel module dependency graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if c.verbose {
				c.logger.SetLevel(log.DebugLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.workspace, "workspace", "w", ".", "workspace directory containing MODULE.bazel")
	pf.StringVar(&c.configPath, "config", "", "config file (default <workspace>/"+ConfigFileName+")")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringSliceVar(&c.registries, "registry", nil, "registry URL; may be repeated, earlier registries win")
	pf.StringVar(&c.bazelVersion, "bazel_version", "", "Bazel version checked against bazel_compatibility")
	pf.Var(&c.compatMode, "check_bazel_compatibility", "off, warning or error")
	pf.Var(&c.directDeps, "check_direct_dependencies", "off, warning or error")
	pf.StringSliceVar(&c.allowYanked, "allow_yanked_versions", nil, `yanked versions to allow, as name@version, or "all"`)
	pf.Var(&c.lockfileMode, "lockfile_mode", "off, update or error")
	pf.BoolVar(&c.ignoreDev, "ignore_dev_dependency", false, "ignore dev_dependency usages of the root module")

	root.AddCommand(
		c.newResolveCmd(),
		c.newGraphCmd(),
		c.newExplainCmd(),
		c.newMappingCmd(),
		c.newRepoCmd(),
	)
	return root
}

// Execute runs the command line args.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(c.out)
	return root.ExecuteContext(ctx)
}

// resolver builds a Resolver from the config file and the flags of cmd.
func (c *CLI) resolver(cmd *cobra.Command) (*bzlresolve.Resolver, error) {
	if !fileExists(filepath.Join(c.workspace, "MODULE.bazel")) {
		return nil, fmt.Errorf("no MODULE.bazel found in %s", c.workspace)
	}
	cfg, err := LoadConfig(c.configPath, c.workspace)
	if err != nil {
		return nil, err
	}
	if err := c.merge(cmd, cfg); err != nil {
		return nil, err
	}

	opts := []bzlresolve.Option{
		bzlresolve.WithWorkspace(c.workspace),
		bzlresolve.WithToolVersion(c.bazelVersion),
		bzlresolve.WithCompatibilityMode(c.compatMode),
		bzlresolve.WithDirectDepsMode(c.directDeps),
		bzlresolve.WithAllowYankedVersions(c.allowYanked...),
		bzlresolve.WithEnvAllowedYankedVersions(c.getenv(AllowYankedEnvVar)),
		bzlresolve.WithIgnoreDevDependencies(c.ignoreDev),
		bzlresolve.WithLockfileMode(c.lockfileMode, lockfile.DefaultPath(c.workspace)),
		bzlresolve.WithLegacyRepos(bzlresolve.LegacyRepos{
			WorkspaceName: cfg.Legacy.WorkspaceName,
			Repos:         cfg.Legacy.RepoMappings(),
		}),
		bzlresolve.WithLogger(c.logger),
	}
	if len(c.registries) > 0 {
		opts = append(opts, bzlresolve.WithRegistries(c.registries...))
	}
	c.logger.Debug("resolver configured",
		"workspace", c.workspace,
		"registries", strings.Join(c.registries, ","),
		"lockfile_mode", c.lockfileMode)
	return bzlresolve.New(opts...)
}

// merge fills settings whose flags were not given from cfg.
func (c *CLI) merge(cmd *cobra.Command, cfg *Config) error {
	changed := cmd.Flags().Changed

	if !changed("registry") && len(cfg.Registries) > 0 {
		c.registries = cfg.Registries
	}
	if !changed("bazel_version") && cfg.BazelVersion != "" {
		c.bazelVersion = cfg.BazelVersion
	}
	if !changed("allow_yanked_versions") && len(cfg.AllowYankedVersions) > 0 {
		c.allowYanked = cfg.AllowYankedVersions
	}
	if !changed("ignore_dev_dependency") && cfg.IgnoreDevDependency {
		c.ignoreDev = true
	}
	if !changed("check_bazel_compatibility") && cfg.CheckBazelCompatibility != "" {
		if err := c.compatMode.Set(cfg.CheckBazelCompatibility); err != nil {
			return fmt.Errorf("check_bazel_compatibility: %w", err)
		}
	}
	if !changed("check_direct_dependencies") && cfg.CheckDirectDependencies != "" {
		if err := c.directDeps.Set(cfg.CheckDirectDependencies); err != nil {
			return fmt.Errorf("check_direct_dependencies: %w", err)
		}
	}
	if !changed("lockfile_mode") && cfg.LockfileMode != "" {
		if err := c.lockfileMode.Set(cfg.LockfileMode); err != nil {
			return fmt.Errorf("lockfile_mode: %w", err)
		}
	}
	return nil
}
