package bzlresolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/eval"
	"github.com/albertocavalcante/go-bzlresolve/graph"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/lockfile"
	"github.com/albertocavalcante/go-bzlresolve/registry"
	"github.com/albertocavalcante/go-bzlresolve/repomap"
)

// Resolver resolves the module graph of one workspace and answers
// repository queries against it.
//
// Every query is memoized for the lifetime of the Resolver, including
// failures: asking again returns the same error without recomputing.
// A Resolver is safe for concurrent use.
type Resolver struct {
	cfg       *config
	loader    ModuleLoader
	evaluator *eval.Evaluator
}

// Result is the outcome of Resolve.
type Result struct {
	*ResolutionValue

	// Graph is the explain view of the resolution.
	Graph *graph.Graph

	// Lockfile is the lockfile of the resolution. LockfileWritten reports
	// whether it was written to disk.
	Lockfile        *lockfile.Lockfile
	LockfileWritten bool

	Events []eval.Event
}

// New creates a Resolver.
func New(opts ...Option) (*Resolver, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	loader := cfg.loader
	if loader == nil {
		chain, err := registry.NewChain(cfg.registries, cfg.registryOptions()...)
		if err != nil {
			return nil, err
		}
		loader = newRegistryLoader(chain, cfg.workspace, cfg.registryOptions()...)
	}

	fns := &functions{cfg: cfg, loader: loader}
	return &Resolver{
		cfg:    cfg,
		loader: loader,
		evaluator: eval.NewEvaluator(fns.table(),
			eval.WithLogger(cfg.logger),
			eval.WithParallelism(cfg.parallelism),
		),
	}, nil
}

// evaluate computes key and asserts its value to T.
func evaluate[T any](ctx context.Context, r *Resolver, key eval.Key) (T, error) {
	var zero T
	v, err := r.evaluator.Eval(ctx, key)
	if errors.Is(err, eval.ErrCycle) {
		return zero, depgraph.Wrap(depgraph.Cycle, err)
	}
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("value of %s has type %T, want %T", key, v, zero)
	}
	return t, nil
}

// Resolve discovers, selects and validates the dependency graph and then
// uses the lockfile according to the configured mode.
func (r *Resolver) Resolve(ctx context.Context) (*Result, error) {
	res, err := evaluate[*ResolutionValue](ctx, r, ResolutionKey{})
	if err != nil {
		return nil, err
	}
	root, err := evaluate[*RootModuleFileValue](ctx, r, RootModuleFileKey{})
	if err != nil {
		return nil, err
	}

	out := &Result{
		ResolutionValue: res,
		Graph:           graph.Build(res.Discovered, res.Resolved, root.Overrides),
		Events:          r.evaluator.Events(),
	}

	out.Lockfile = lockfile.New(lockfile.Input{
		ModuleFile:             root.Content,
		Graph:                  res.Resolved,
		Flags:                  r.cfg.lockfileFlags(),
		RegistryFileHashes:     r.fileHashes(),
		SelectedYankedVersions: res.SelectedYanked,
	})
	if r.cfg.lockfilePath != "" {
		written, err := lockfile.Apply(r.cfg.lockfileMode, r.cfg.lockfilePath, out.Lockfile)
		if err != nil {
			return nil, err
		}
		out.LockfileWritten = written
		if written {
			r.cfg.logger.Info("lockfile updated", "path", r.cfg.lockfilePath)
		}
	}
	return out, nil
}

func (r *Resolver) fileHashes() map[string]string {
	if h, ok := r.loader.(interface{ FileHashes() map[string]string }); ok {
		return h.FileHashes()
	}
	return nil
}

// DepGraph returns the naming view of the resolved graph.
func (r *Resolver) DepGraph(ctx context.Context) (*repomap.Index, error) {
	v, err := evaluate[*DepGraphValue](ctx, r, DepGraphKey{})
	if err != nil {
		return nil, err
	}
	return v.Index, nil
}

// RepoRule returns the rule that defines a canonical repository, or
// RepoRuleNotFound.
func (r *Resolver) RepoRule(ctx context.Context, repo label.RepositoryName) (*RepoRuleValue, error) {
	return evaluate[*RepoRuleValue](ctx, r, RepoRuleKey{Repo: repo})
}

// RepoMapping returns the repository mapping of a canonical repository.
func (r *Resolver) RepoMapping(ctx context.Context, repo label.RepositoryName, rootSeesLegacyRepos bool) (repomap.Mapping, error) {
	v, err := evaluate[*RepoMappingValue](ctx, r, RepoMappingKey{Repo: repo, RootSeesLegacyRepos: rootSeesLegacyRepos})
	if err != nil {
		return repomap.Mapping{}, err
	}
	return v.Mapping, nil
}

// Events returns the diagnostics published so far.
func (r *Resolver) Events() []eval.Event {
	return r.evaluator.Events()
}
