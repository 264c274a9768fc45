package registry

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
	"github.com/albertocavalcante/go-bzlresolve/label"
)

// Validate checks the fields the source's type requires. Every problem is
// reported.
func (s *Source) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	switch s.Kind() {
	case SourceArchive:
		if s.URL == "" {
			add("archive source: url is required")
		}
		if s.Integrity == "" {
			add("archive source: integrity is required")
		}
		for name, integrity := range s.Patches {
			if integrity == "" {
				add("archive source: patch %s has no integrity", name)
			}
		}
		if s.PatchStrip < 0 {
			add("archive source: patch_strip must not be negative")
		}
	case SourceGit:
		if s.Remote == "" {
			add("git_repository source: remote is required")
		}
		if s.Commit == "" && s.Tag == "" {
			add("git_repository source: one of commit or tag is required")
		}
	case SourceLocalPath:
		if s.Path == "" {
			add("local_path source: path is required")
		}
	default:
		add("unknown source type %q", s.Type)
	}
	return result.ErrorOrNil()
}

// RepoSpec returns the repository rule that materializes name@version from
// this registry under the canonical name repo.
func (c *Client) RepoSpec(ctx context.Context, name, version string, repo label.RepositoryName) (depgraph.RepoSpec, error) {
	src, err := c.GetSource(ctx, name, version)
	if err != nil {
		return depgraph.RepoSpec{}, err
	}
	if err := src.Validate(); err != nil {
		return depgraph.RepoSpec{}, depgraph.Wrap(depgraph.InvalidRepoSpec,
			fmt.Errorf("invalid source.json for %s@%s in %s: %w", name, version, c.baseURL, err))
	}

	switch src.Kind() {
	case SourceLocalPath:
		return c.localPathSpec(ctx, src, repo)
	case SourceGit:
		return gitSpec(src, repo), nil
	default:
		cfg, err := c.GetRegistryConfig(ctx)
		if err != nil {
			return depgraph.RepoSpec{}, err
		}
		return c.archiveSpec(src, cfg, name, version, repo), nil
	}
}

func (c *Client) archiveSpec(src *Source, cfg *RegistryConfig, name, version string, repo label.RepositoryName) depgraph.RepoSpec {
	urls := make([]string, 0, len(cfg.Mirrors)+1)
	for _, mirror := range cfg.Mirrors {
		if host, ok := strings.CutPrefix(src.URL, "https://"); ok {
			urls = append(urls, strings.TrimSuffix(mirror, "/")+"/"+host)
		}
	}
	urls = append(urls, src.URL)

	remotePatches := make(map[string]string, len(src.Patches))
	for _, patch := range slices.Sorted(maps.Keys(src.Patches)) {
		remotePatches[c.url("modules", name, version, "patches", patch)] = src.Patches[patch]
	}
	overlay := make(map[string]string, len(src.Overlay))
	for _, file := range slices.Sorted(maps.Keys(src.Overlay)) {
		overlay[c.url("modules", name, version, "overlay", file)] = src.Overlay[file]
	}

	attrs := map[string]any{
		"name":               repo.Name(),
		"urls":               urls,
		"integrity":          src.Integrity,
		"strip_prefix":       src.StripPrefix,
		"remote_patches":     remotePatches,
		"remote_patch_strip": src.PatchStrip,
	}
	if len(overlay) > 0 {
		attrs["remote_file_urls"] = overlay
	}
	return depgraph.RepoSpec{BzlFile: depgraph.HTTPBzl, RuleClassName: "http_archive", Attributes: attrs}
}

func gitSpec(src *Source, repo label.RepositoryName) depgraph.RepoSpec {
	attrs := map[string]any{
		"name":            repo.Name(),
		"remote":          src.Remote,
		"init_submodules": src.InitSubmodules,
	}
	for key, value := range map[string]string{
		"commit":        src.Commit,
		"tag":           src.Tag,
		"shallow_since": src.ShallowSince,
		"strip_prefix":  src.StripPrefix,
	} {
		if value != "" {
			attrs[key] = value
		}
	}
	return depgraph.RepoSpec{BzlFile: depgraph.GitBzl, RuleClassName: "git_repository", Attributes: attrs}
}

// localPathSpec resolves a relative path against the registry's
// module_base_path, which itself is relative to a file:// registry root.
func (c *Client) localPathSpec(ctx context.Context, src *Source, repo label.RepositoryName) (depgraph.RepoSpec, error) {
	path := src.Path
	if !filepath.IsAbs(path) {
		if c.root == "" {
			return depgraph.RepoSpec{}, depgraph.Errorf(depgraph.InvalidRepoSpec,
				"local_path source %q needs a file:// registry, got %s", path, c.baseURL)
		}
		cfg, err := c.GetRegistryConfig(ctx)
		if err != nil {
			return depgraph.RepoSpec{}, err
		}
		base := cfg.ModuleBasePath
		if !filepath.IsAbs(base) {
			base = filepath.Join(c.root, base)
		}
		path = filepath.Join(base, path)
	}
	return depgraph.RepoSpec{
		RuleClassName: "local_repository",
		Attributes:    map[string]any{"name": repo.Name(), "path": path},
	}, nil
}
