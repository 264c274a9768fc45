package bzlresolve

import (
	"context"

	"github.com/albertocavalcante/go-bzlresolve/check"
	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/discovery"
	"github.com/albertocavalcante/go-bzlresolve/eval"
	"github.com/albertocavalcante/go-bzlresolve/selection"
)

func (f *functions) discovery(_ context.Context, _ eval.Key, env eval.Env) (eval.Result, error) {
	root, ok, err := eval.Get[*RootModuleFileValue](env, RootModuleFileKey{})
	if err != nil || !ok {
		return pendingOrFail(err, RootModuleFileKey{})
	}

	lookup := func(key depgraph.ModuleKey) (*depgraph.InterimModule, bool, error) {
		v, ok, err := eval.Get[*ModuleFileValue](env, ModuleFileKey{Key: key})
		if err != nil || !ok {
			return nil, ok, err
		}
		return v.Module, true, nil
	}
	res, err := discovery.Run(root.Module, root.Overrides, lookup)
	if err != nil {
		return eval.Result{}, err
	}
	if len(res.Pending) > 0 {
		keys := make([]eval.Key, len(res.Pending))
		for i, k := range res.Pending {
			keys[i] = ModuleFileKey{Key: k}
		}
		return eval.Pending(keys...), nil
	}
	return eval.Done(&DiscoveryValue{Graph: res.Graph}), nil
}

func (f *functions) yankedVersions(ctx context.Context, key eval.Key, _ eval.Env) (eval.Result, error) {
	k := key.(YankedVersionsKey)
	reasons, err := f.loader.YankedVersions(ctx, k.Registry, k.Name)
	if err != nil {
		return eval.Result{}, err
	}
	return eval.Done(&YankedVersionsValue{Reasons: reasons}), nil
}

// resolution selects versions and validates the selected graph: the
// yank allow-list first, then bazel_compatibility, yanked versions and the
// root module's direct dependencies.
func (f *functions) resolution(_ context.Context, _ eval.Key, env eval.Env) (eval.Result, error) {
	allow, err := check.ParseAllowList(f.cfg.allowList())
	if err != nil {
		return eval.Result{}, err
	}

	root, ok, err := eval.Get[*RootModuleFileValue](env, RootModuleFileKey{})
	if err != nil || !ok {
		return pendingOrFail(err, RootModuleFileKey{})
	}
	disc, ok, err := eval.Get[*DiscoveryValue](env, DiscoveryKey{})
	if err != nil || !ok {
		return pendingOrFail(err, DiscoveryKey{})
	}

	sel, err := selection.Run(disc.Graph, root.Overrides)
	if err != nil {
		return eval.Result{}, err
	}

	var warnings []string
	compat, err := check.Compatibility(sel.Resolved, f.cfg.toolVersion, f.cfg.compatMode)
	if err != nil {
		return eval.Result{}, err
	}
	warnings = append(warnings, compat...)

	reasons, missing, err := yankReasons(env, sel.Resolved, allow)
	if err != nil {
		return eval.Result{}, err
	}
	if len(missing) > 0 {
		return eval.Pending(missing...), nil
	}
	if err := check.Yanked(sel.Resolved, reasons, allow); err != nil {
		return eval.Result{}, err
	}

	direct, err := check.DirectDeps(disc.Graph.Root(), sel.Resolved.Root(), f.cfg.directDepsMode)
	if err != nil {
		return eval.Result{}, err
	}
	warnings = append(warnings, direct...)

	for _, w := range warnings {
		env.Warnf("%s", w)
	}
	for key := range sel.Resolved.All() {
		if reason, ok := reasons[key]; ok {
			env.Infof("selected yanked version %s is allowed (yanked: %s)", key, reason)
		}
	}
	return eval.Done(&ResolutionValue{
		Resolved:       sel.Resolved,
		Unpruned:       sel.Unpruned,
		Discovered:     disc.Graph,
		SelectedYanked: reasons,
		Warnings:       warnings,
	}), nil
}

// yankReasons collects the yank reasons of the selected registry modules.
// Nothing is fetched when every yanked version is allowed anyway. Once
// check.Yanked passes, the returned reasons are exactly the allowed yanked
// versions in the graph.
func yankReasons(env eval.Env, g *depgraph.DepGraph[*depgraph.Module], allow check.AllowList) (map[depgraph.ModuleKey]string, []eval.Key, error) {
	reasons := make(map[depgraph.ModuleKey]string)
	if allow.AllowsAll() {
		return reasons, nil, nil
	}
	var missing []eval.Key
	for key, m := range g.All() {
		if m.Registry == "" {
			continue
		}
		yk := YankedVersionsKey{Name: key.Name, Registry: m.Registry}
		v, ok, err := eval.Get[*YankedVersionsValue](env, yk)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			missing = append(missing, yk)
			continue
		}
		if reason, yanked := v.Reasons[key.Version]; yanked {
			reasons[key] = reason
		}
	}
	return reasons, missing, nil
}
