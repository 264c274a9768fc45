package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/albertocavalcante/go-bzlresolve/label"
)

// ConfigFileName is looked up in the workspace when --config is not given.
const ConfigFileName = ".bzlresolve.toml"

// Config is the contents of a .bzlresolve.toml file. Command-line flags
// take precedence over every field.
type Config struct {
	Registries              []string `toml:"registries"`
	BazelVersion            string   `toml:"bazel_version"`
	CheckBazelCompatibility string   `toml:"check_bazel_compatibility"`
	CheckDirectDependencies string   `toml:"check_direct_dependencies"`
	AllowYankedVersions     []string `toml:"allow_yanked_versions"`
	LockfileMode            string   `toml:"lockfile_mode"`
	IgnoreDevDependency     bool     `toml:"ignore_dev_dependency"`

	Legacy LegacyConfig `toml:"legacy"`
}

// LegacyConfig describes repositories defined outside the module system.
//
//	[legacy]
//	workspace_name = "my_ws"
//
//	[legacy.repos.old_repo]
//	rules_x = "rules_x~"
type LegacyConfig struct {
	WorkspaceName string                       `toml:"workspace_name"`
	Repos         map[string]map[string]string `toml:"repos"`
}

// RepoMappings converts the configured legacy repositories.
func (l LegacyConfig) RepoMappings() map[string]map[string]label.RepositoryName {
	if len(l.Repos) == 0 {
		return nil
	}
	out := make(map[string]map[string]label.RepositoryName, len(l.Repos))
	for repo, mapping := range l.Repos {
		m := make(map[string]label.RepositoryName, len(mapping))
		for apparent, canonical := range mapping {
			m[apparent] = label.RepositoryName(canonical)
		}
		out[repo] = m
	}
	return out
}

// LoadConfig reads a config file. When path is empty the workspace's
// .bzlresolve.toml is used if it exists; a missing default file is an empty
// config, a missing explicit file is an error.
func LoadConfig(path, workspace string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(workspace, ConfigFileName)
	}

	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
