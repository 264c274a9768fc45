package bzlresolve

import (
	"context"
	"fmt"
	"maps"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/eval"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/repomap"
)

func (f *functions) depGraph(_ context.Context, _ eval.Key, env eval.Env) (eval.Result, error) {
	res, ok, err := eval.Get[*ResolutionValue](env, ResolutionKey{})
	if err != nil || !ok {
		return pendingOrFail(err, ResolutionKey{})
	}
	idx, err := repomap.Build(res.Resolved)
	if err != nil {
		return eval.Result{}, err
	}
	return eval.Done(&DepGraphValue{Index: idx}), nil
}

func (f *functions) moduleRepoSpec(ctx context.Context, key eval.Key, _ eval.Env) (eval.Result, error) {
	k := key.(ModuleRepoSpecKey)
	spec, err := f.loader.RepoSpec(ctx, k.Registry, k.Key.Name, k.Key.Version, k.Repo)
	if err != nil {
		return eval.Result{}, err
	}
	return eval.Done(&ModuleRepoSpecValue{Spec: spec}), nil
}

func (f *functions) extensionEval(ctx context.Context, key eval.Key, env eval.Env) (eval.Result, error) {
	id := key.(ExtensionEvalKey).ID
	dg, ok, err := eval.Get[*DepGraphValue](env, DepGraphKey{})
	if err != nil || !ok {
		return pendingOrFail(err, DepGraphKey{})
	}
	if f.cfg.extensions == nil {
		return eval.Result{}, fmt.Errorf("cannot evaluate extension %s: no extension evaluator is configured", id)
	}

	idx := dg.Index
	unique, ok := idx.UniqueName(id)
	if !ok {
		return eval.Result{}, fmt.Errorf("extension %s is not used by any module", id)
	}
	req := ExtensionRequest{ID: id, UniqueName: unique}
	for _, ref := range idx.Usages(id) {
		repo, _ := idx.CanonicalName(ref.Module)
		req.Usages = append(req.Usages, ExtensionUsage{
			Module: ref.Module,
			Repo:   repo,
			IsRoot: ref.Module == depgraph.RootKey,
			Usage:  ref.Usage,
		})
	}

	repos, missing, err := f.cfg.extensions.Evaluate(ctx, env, req)
	if err != nil {
		return eval.Result{}, fmt.Errorf("error evaluating extension %s: %w", id, err)
	}
	if len(missing) > 0 {
		return eval.Pending(missing...), nil
	}

	value := &ExtensionEvalValue{
		Repos:               make(map[string]depgraph.RepoSpec, len(repos)),
		CanonicalToInternal: make(map[label.RepositoryName]string, len(repos)),
	}
	for internal, spec := range repos {
		canonical := repomap.ExtensionRepoName(unique, internal)
		attrs := maps.Clone(spec.Attributes)
		if attrs == nil {
			attrs = make(map[string]any)
		}
		attrs["name"] = canonical.Name()
		spec.Attributes = attrs
		value.Repos[internal] = spec
		value.CanonicalToInternal[canonical] = internal
	}
	return eval.Done(value), nil
}

// Steps of the repository rule lookup.
const (
	stepOverride = iota
	stepModule
	stepExtension
)

// repoRuleState survives restarts of a repository rule lookup. Values
// obtained by an earlier step are kept so a resumed lookup starts at the
// step it suspended in.
type repoRuleState struct {
	step  int
	index *repomap.Index
}

// repoRule finds the rule defining a canonical repository. The steps run
// in a fixed order: non-registry overrides, which only need the root
// module file, then modules of the resolved graph, then extension-generated
// repositories. An overridden module must be found without requesting the
// resolved graph.
func (f *functions) repoRule(_ context.Context, key eval.Key, env eval.Env) (eval.Result, error) {
	repo := key.(RepoRuleKey).Repo
	state := env.State(func() any { return &repoRuleState{} }).(*repoRuleState)

	for {
		switch state.step {
		case stepOverride:
			root, ok, err := eval.Get[*RootModuleFileValue](env, RootModuleFileKey{})
			if err != nil || !ok {
				return pendingOrFail(err, RootModuleFileKey{})
			}
			if name, ok := root.NonRegistryRepos[repo]; ok {
				spec, _ := depgraph.NonRegistryRepoSpec(root.Overrides[name], repo)
				return f.found(repo, spec, SourceOverride)
			}
			state.step = stepModule

		case stepModule:
			if state.index == nil {
				dg, ok, err := eval.Get[*DepGraphValue](env, DepGraphKey{})
				if err != nil || !ok {
					return pendingOrFail(err, DepGraphKey{})
				}
				state.index = dg.Index
			}
			if repo.IsMain() {
				return eval.Done(RepoRuleNotFound), nil
			}
			modKey, ok := state.index.ModuleFor(repo)
			if !ok {
				state.step = stepExtension
				continue
			}
			m, _ := state.index.Graph().Get(modKey)
			specKey := ModuleRepoSpecKey{Key: modKey, Registry: m.Registry, Repo: repo}
			v, ok, err := eval.Get[*ModuleRepoSpecValue](env, specKey)
			if err != nil || !ok {
				return pendingOrFail(err, specKey)
			}
			return f.found(repo, v.Spec, SourceModule)

		case stepExtension:
			id, internal, ok := state.index.ExtensionFor(repo)
			if !ok {
				return eval.Done(RepoRuleNotFound), nil
			}
			ext, ok, err := eval.Get[*ExtensionEvalValue](env, ExtensionEvalKey{ID: id})
			if err != nil || !ok {
				return pendingOrFail(err, ExtensionEvalKey{ID: id})
			}
			spec, ok := ext.Repos[internal]
			if !ok {
				return eval.Done(RepoRuleNotFound), nil
			}
			return f.found(repo, spec, SourceExtension)

		default:
			panic(fmt.Sprintf("unknown repo rule step %d", state.step))
		}
	}
}

func (f *functions) found(repo label.RepositoryName, spec depgraph.RepoSpec, source RepoSource) (eval.Result, error) {
	if err := f.validateRepoSpec(spec); err != nil {
		return eval.Result{}, err
	}
	return eval.Done(&RepoRuleValue{Repo: repo, Spec: spec, Source: source}), nil
}

// validateRepoSpec rejects native rules outside the configured set, and
// Starlark rules defined anywhere but the main repository, @bazel_tools or
// a canonically named repository.
func (f *functions) validateRepoSpec(spec depgraph.RepoSpec) error {
	if spec.IsNative() {
		if !f.cfg.nativeRules[spec.RuleClassName] {
			return depgraph.Errorf(depgraph.InvalidRepoSpec, "Unrecognized native repository rule: %s", spec.RuleClassName)
		}
		return nil
	}
	l, err := label.Parse(spec.BzlFile)
	if err == nil && (l.Canonical || l.Relative || l.Repo == "" || l.Repo == label.BazelTools.Name()) {
		return nil
	}
	return depgraph.Errorf(depgraph.InvalidRepoSpec, "Invalid repository rule: %s", spec.RuleClass())
}
