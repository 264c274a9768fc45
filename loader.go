package bzlresolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/eval"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/registry"
)

// ModuleLoader is where module files and module sources come from.
type ModuleLoader interface {
	// LoadModule returns the MODULE.bazel of name@version and the URL of
	// the registry that served it. A non-empty registry restricts the
	// lookup to that registry. A module no registry has fails with an
	// error wrapping registry.ErrNotFound.
	LoadModule(ctx context.Context, name, version, registry string) (content []byte, servedBy string, err error)

	// LoadOverridden returns the MODULE.bazel of a module with a
	// non-registry override.
	LoadOverridden(ctx context.Context, name string, o depgraph.Override) ([]byte, error)

	// YankedVersions returns the yanked versions of name in registry, with
	// their reasons.
	YankedVersions(ctx context.Context, registry, name string) (map[string]string, error)

	// RepoSpec returns the repository rule that fetches name@version from
	// registry under the canonical name repo.
	RepoSpec(ctx context.Context, registry, name, version string, repo label.RepositoryName) (depgraph.RepoSpec, error)
}

// ExtensionRequest is everything an extension evaluation sees.
type ExtensionRequest struct {
	ID         depgraph.ModuleExtensionID
	UniqueName string
	// Usages are the uses of the extension across the resolved graph, in
	// graph order.
	Usages []ExtensionUsage
}

// ExtensionUsage is one module's use of an extension.
type ExtensionUsage struct {
	Module depgraph.ModuleKey
	Repo   label.RepositoryName
	IsRoot bool
	Usage  depgraph.ExtensionUsage
}

// ExtensionEvaluator runs module extensions.
type ExtensionEvaluator interface {
	// Evaluate returns the repositories the extension generates, keyed by
	// internal name. An evaluator that needs values that are not computed
	// yet returns the keys it is waiting for instead; it is called again
	// once they exist.
	Evaluate(ctx context.Context, env eval.Env, req ExtensionRequest) (repos map[string]depgraph.RepoSpec, missing []eval.Key, err error)
}

// ExtensionEvaluatorFunc adapts a function to ExtensionEvaluator.
type ExtensionEvaluatorFunc func(ctx context.Context, env eval.Env, req ExtensionRequest) (map[string]depgraph.RepoSpec, []eval.Key, error)

// Evaluate calls f.
func (f ExtensionEvaluatorFunc) Evaluate(ctx context.Context, env eval.Env, req ExtensionRequest) (map[string]depgraph.RepoSpec, []eval.Key, error) {
	return f(ctx, env, req)
}

// LegacyRepos describes repositories defined outside the module graph,
// such as those of a WORKSPACE file.
type LegacyRepos struct {
	// WorkspaceName is the name the main repository used for itself.
	WorkspaceName string
	// Repos maps each repository name to its own repository mapping.
	Repos map[string]map[string]label.RepositoryName
}

// registryLoader loads modules from a registry chain and local paths.
type registryLoader struct {
	chain     *registry.Chain
	workspace string
	opts      []registry.ClientOption

	mu    sync.Mutex
	extra map[string]*registry.Client
}

var _ ModuleLoader = (*registryLoader)(nil)

func newRegistryLoader(chain *registry.Chain, workspace string, opts ...registry.ClientOption) *registryLoader {
	return &registryLoader{
		chain:     chain,
		workspace: workspace,
		opts:      opts,
		extra:     make(map[string]*registry.Client),
	}
}

// client returns the chain member for url, or a client created on first
// use for registries only a single_version_override names.
func (l *registryLoader) client(url string) (*registry.Client, error) {
	if c, ok := l.chain.Client(url); ok {
		return c, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.extra[url]; ok {
		return c, nil
	}
	c, err := registry.NewClient(url, l.opts...)
	if err != nil {
		return nil, err
	}
	l.extra[url] = c
	return c, nil
}

func (l *registryLoader) LoadModule(ctx context.Context, name, version, reg string) ([]byte, string, error) {
	if reg == "" {
		data, c, err := l.chain.GetModuleFile(ctx, name, version)
		if err != nil {
			return nil, "", err
		}
		return data, c.BaseURL(), nil
	}
	c, err := l.client(reg)
	if err != nil {
		return nil, "", err
	}
	data, err := c.GetModuleFile(ctx, name, version)
	if err != nil {
		return nil, "", fmt.Errorf("registry %s: %w", reg, err)
	}
	return data, c.BaseURL(), nil
}

func (l *registryLoader) LoadOverridden(_ context.Context, name string, o depgraph.Override) ([]byte, error) {
	lp, ok := o.(depgraph.LocalPathOverride)
	if !ok {
		return nil, fmt.Errorf("module %s: the MODULE.bazel of a module with %s is only available after fetching it", name, depgraph.OverrideKind(o))
	}
	dir := lp.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(l.workspace, dir)
	}
	data, err := os.ReadFile(filepath.Join(dir, "MODULE.bazel"))
	if errors.Is(err, os.ErrNotExist) {
		// A local repository without a module file is an empty module.
		return nil, nil
	}
	return data, err
}

func (l *registryLoader) YankedVersions(ctx context.Context, reg, name string) (map[string]string, error) {
	c, err := l.client(reg)
	if err != nil {
		return nil, err
	}
	return c.YankedVersions(ctx, name)
}

func (l *registryLoader) RepoSpec(ctx context.Context, reg, name, version string, repo label.RepositoryName) (depgraph.RepoSpec, error) {
	c, err := l.client(reg)
	if err != nil {
		return depgraph.RepoSpec{}, err
	}
	return c.RepoSpec(ctx, name, version, repo)
}

// FileHashes returns the hashes of every registry file read so far.
func (l *registryLoader) FileHashes() map[string]string {
	hashes := l.chain.FileHashes()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.extra {
		for url, h := range c.FileHashes() {
			hashes[url] = h
		}
	}
	return hashes
}
