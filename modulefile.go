package bzlresolve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/eval"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/modfile"
	"github.com/albertocavalcante/go-bzlresolve/registry"
	"github.com/albertocavalcante/go-bzlresolve/repomap"
)

// functions are the compute functions of one Resolver.
type functions struct {
	cfg    *config
	loader ModuleLoader
}

func (f *functions) table() map[eval.FunctionName]eval.Function {
	return map[eval.FunctionName]eval.Function{
		FuncRootModuleFile: eval.FunctionFunc(f.rootModuleFile),
		FuncModuleFile:     eval.FunctionFunc(f.moduleFile),
		FuncDiscovery:      eval.FunctionFunc(f.discovery),
		FuncResolution:     eval.FunctionFunc(f.resolution),
		FuncYankedVersions: eval.FunctionFunc(f.yankedVersions),
		FuncDepGraph:       eval.FunctionFunc(f.depGraph),
		FuncExtensionEval:  eval.FunctionFunc(f.extensionEval),
		FuncModuleRepoSpec: eval.FunctionFunc(f.moduleRepoSpec),
		FuncRepoRule:       eval.FunctionFunc(f.repoRule),
		FuncRepoMapping:    eval.FunctionFunc(f.repoMapping),
		FuncLegacyRepos:    eval.FunctionFunc(f.legacyRepos),
	}
}

func (f *functions) rootModuleFile(_ context.Context, _ eval.Key, _ eval.Env) (eval.Result, error) {
	content, filename := f.cfg.rootContent, f.cfg.rootFilename
	if content == nil {
		filename = filepath.Join(f.cfg.workspace, "MODULE.bazel")
		var err error
		if content, err = os.ReadFile(filename); err != nil {
			return eval.Result{}, err
		}
	}

	file, err := modfile.Parse(filename, content, modfile.Options{
		Root:                  true,
		IgnoreDevDependencies: f.cfg.ignoreDevDeps,
	})
	if err != nil {
		return eval.Result{}, err
	}

	nonRegistry := make(map[label.RepositoryName]string)
	for name, o := range file.Overrides {
		if depgraph.IsNonRegistry(o) {
			nonRegistry[nonRegistryRepoName(name)] = name
		}
	}
	return eval.Done(&RootModuleFileValue{
		Module:           file.Module,
		Overrides:        file.Overrides,
		NonRegistryRepos: nonRegistry,
		Content:          content,
	}), nil
}

// nonRegistryRepoName is the canonical name of a module with a non-registry
// override. Such a module has a single version, so it is named the way
// repomap names every single-version module.
func nonRegistryRepoName(name string) label.RepositoryName {
	if wk, ok := label.WellKnownRepo(name); ok {
		return wk
	}
	return label.RepositoryName(name + repomap.Separator)
}

func (f *functions) moduleFile(ctx context.Context, key eval.Key, env eval.Env) (eval.Result, error) {
	k := key.(ModuleFileKey).Key
	root, ok, err := eval.Get[*RootModuleFileValue](env, RootModuleFileKey{})
	if err != nil || !ok {
		return pendingOrFail(err, RootModuleFileKey{})
	}

	var (
		content  []byte
		servedBy string
		filename = k.String() + "/MODULE.bazel"
	)
	switch o := root.Overrides[k.Name]; {
	case depgraph.IsNonRegistry(o):
		if content, err = f.loader.LoadOverridden(ctx, k.Name, o); err != nil {
			return eval.Result{}, err
		}
	default:
		var reg string
		if svo, isSVO := o.(depgraph.SingleVersionOverride); isSVO {
			reg = svo.Registry
		}
		if content, servedBy, err = f.loader.LoadModule(ctx, k.Name, k.Version, reg); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return eval.Result{}, depgraph.Wrap(depgraph.UnknownModule, err)
			}
			return eval.Result{}, fmt.Errorf("loading %s: %w", k, err)
		}
	}

	file, err := modfile.Parse(filename, content, modfile.Options{Key: k, Registry: servedBy})
	if err != nil {
		return eval.Result{}, err
	}
	m := file.Module
	if m.Name == "" && depgraph.IsNonRegistry(root.Overrides[k.Name]) {
		m.Name, m.RepoName = k.Name, k.Name
	}
	if m.Name != k.Name {
		return eval.Result{}, depgraph.Errorf(depgraph.UnknownModule,
			"the MODULE.bazel file of %s declares a different name (%s)", k, m.Name)
	}
	return eval.Done(&ModuleFileValue{Module: m}), nil
}

// pendingOrFail returns the failure of an input if it has one, and
// suspends on keys otherwise.
func pendingOrFail(err error, keys ...eval.Key) (eval.Result, error) {
	if err != nil {
		return eval.Result{}, err
	}
	return eval.Pending(keys...), nil
}
