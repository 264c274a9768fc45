package lockfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// lockfilePermissions is the file mode lockfiles are written with.
const lockfilePermissions = 0o644

// FileName is the lockfile's name in the workspace root.
const FileName = "MODULE.bazel.lock"

// ReadFile reads and parses a lockfile. A missing file yields nil and no
// error.
func ReadFile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	return Parse(data)
}

// Parse parses lockfile JSON data.
func Parse(data []byte) (*Lockfile, error) {
	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile JSON: %w", err)
	}
	if err := lf.ModuleDepGraph.validate(); err != nil {
		return nil, fmt.Errorf("invalid lockfile: %w", err)
	}
	lf.normalize()
	return &lf, nil
}

// validate reports every module entry stored under the wrong key and every
// dependency edge leading outside the graph.
func (g Graph) validate() error {
	var result *multierror.Error
	for _, key := range g.keys {
		m := g.modules[key]
		if m.Key != "" && m.Key != key {
			result = multierror.Append(result, fmt.Errorf("module %s is stored under key %s", m.Key, key))
		}
		for repo, dep := range m.Deps {
			if _, ok := g.modules[dep]; !ok {
				result = multierror.Append(result, fmt.Errorf("module %s: dependency %s (%s) is not in the graph", key, dep, repo))
			}
		}
	}
	return result.ErrorOrNil()
}

func (l *Lockfile) normalize() {
	if l.RegistryFileHashes == nil {
		l.RegistryFileHashes = make(map[string]string)
	}
	if l.SelectedYankedVersions == nil {
		l.SelectedYankedVersions = make(map[string]string)
	}
	if l.Flags.CmdRegistries == nil {
		l.Flags.CmdRegistries = []string{}
	}
	if l.Flags.AllowedYankedVersions == nil {
		l.Flags.AllowedYankedVersions = []string{}
	}
}

// Marshal serializes the lockfile. Maps are written with sorted keys and
// the module graph in BFS order, so the output is reproducible.
func (l *Lockfile) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the lockfile to path.
func (l *Lockfile) WriteFile(path string) error {
	data, err := l.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, lockfilePermissions)
}

// DefaultPath returns the lockfile path in a workspace root.
func DefaultPath(workspaceRoot string) string {
	if workspaceRoot == "" {
		return FileName
	}
	return filepath.Join(workspaceRoot, FileName)
}
