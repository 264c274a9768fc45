package bzlresolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/eval"
	"github.com/albertocavalcante/go-bzlresolve/label"
	"github.com/albertocavalcante/go-bzlresolve/repomap"
)

// ErrUnknownRepository is wrapped by the failure of a RepoMappingKey whose
// repository is neither in the module graph nor a legacy repository.
var ErrUnknownRepository = errors.New("unknown repository")

func (f *functions) legacyRepos(_ context.Context, _ eval.Key, _ eval.Env) (eval.Result, error) {
	return eval.Done(&LegacyReposValue{
		WorkspaceName: f.cfg.legacy.WorkspaceName,
		Repos:         f.cfg.legacy.Repos,
	}), nil
}

func (f *functions) repoMapping(_ context.Context, key eval.Key, env eval.Env) (eval.Result, error) {
	k := key.(RepoMappingKey)
	dg, ok, err := eval.Get[*DepGraphValue](env, DepGraphKey{})
	if err != nil || !ok {
		return pendingOrFail(err, DepGraphKey{})
	}
	idx := dg.Index

	switch {
	case k.Repo == label.Builtins:
		m := repomap.New(map[string]label.RepositoryName{
			label.Builtins.Name(): label.Builtins,
			"":                    label.Main,
		}, label.Builtins)
		if tools, ok := idx.ModuleFor(label.BazelTools); ok {
			m = m.WithAdditionalMappings(idx.FullMapping(tools).Entries())
		}
		return done(m)

	case k.Repo.IsMain() && k.RootSeesLegacyRepos:
		legacy, ok, err := eval.Get[*LegacyReposValue](env, LegacyReposKey{})
		if err != nil || !ok {
			return pendingOrFail(err, LegacyReposKey{})
		}
		m := idx.FullMapping(depgraph.RootKey)
		if legacy.WorkspaceName != "" {
			m = m.WithAdditionalMappings(map[string]label.RepositoryName{legacy.WorkspaceName: label.Main})
		}
		names := make(map[string]label.RepositoryName, len(legacy.Repos))
		for name := range legacy.Repos {
			names[name] = label.RepositoryName(name)
		}
		return done(m.WithAdditionalMappings(names))
	}

	if modKey, ok := idx.ModuleFor(k.Repo); ok {
		return done(idx.FullMapping(modKey))
	}

	if id, internal, ok := idx.ExtensionFor(k.Repo); ok && f.cfg.extensions != nil {
		ext, ok, err := eval.Get[*ExtensionEvalValue](env, ExtensionEvalKey{ID: id})
		if err != nil || !ok {
			return pendingOrFail(err, ExtensionEvalKey{ID: id})
		}
		if _, generated := ext.Repos[internal]; generated {
			m, err := idx.ExtensionRepoMapping(id, k.Repo, ext.Internal())
			if err != nil {
				return eval.Result{}, err
			}
			return done(m)
		}
	}

	legacy, ok, err := eval.Get[*LegacyReposValue](env, LegacyReposKey{})
	if err != nil || !ok {
		return pendingOrFail(err, LegacyReposKey{})
	}
	own, ok := legacy.Repos[k.Repo.Name()]
	if !ok {
		return eval.Result{}, fmt.Errorf("repository %s: %w", k.Repo, ErrUnknownRepository)
	}
	return done(repomap.NewAllowingFallback(own).ComposeWith(idx.FullMapping(depgraph.RootKey)))
}

func done(m repomap.Mapping) (eval.Result, error) {
	return eval.Done(&RepoMappingValue{Mapping: m}), nil
}
