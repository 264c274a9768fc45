package lockfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// CurrentVersion is the lockfile format this package writes: the format
// that carries the resolved module graph.
const CurrentVersion = 3

// Lockfile is the content of MODULE.bazel.lock.
type Lockfile struct {
	Version int `json:"lockFileVersion"`

	// ModuleFileHash is the SHA-256 of the root MODULE.bazel.
	ModuleFileHash string `json:"moduleFileHash"`

	Flags Flags `json:"flags"`

	// RegistryFileHashes maps every registry file URL fetched during
	// resolution to its SHA-256, or to "not found".
	RegistryFileHashes map[string]string `json:"registryFileHashes"`

	// SelectedYankedVersions maps "name@version" of selected yanked
	// modules to their yank reason.
	SelectedYankedVersions map[string]string `json:"selectedYankedVersions"`

	ModuleDepGraph Graph `json:"moduleDepGraph"`
}

// Flags records the options that influence resolution.
type Flags struct {
	CmdRegistries               []string `json:"cmdRegistries"`
	IgnoreDevDependency         bool     `json:"ignoreDevDependency"`
	AllowedYankedVersions       []string `json:"allowedYankedVersions"`
	EnvVarAllowedYankedVersions string   `json:"envVarAllowedYankedVersions"`
	DirectDependenciesMode      string   `json:"directDependenciesMode"`
	CompatibilityMode           string   `json:"compatibilityMode"`
}

// Module is one resolved module in the lockfile.
type Module struct {
	Name               string            `json:"name"`
	Version            string            `json:"version"`
	Key                string            `json:"key"`
	RepoName           string            `json:"repoName"`
	CompatibilityLevel int               `json:"compatibilityLevel,omitempty"`
	Registry           string            `json:"registry,omitempty"`
	BazelCompatibility []string          `json:"bazelCompatibility,omitempty"`
	Deps               map[string]string `json:"deps"`
	ExtensionUsages    []ExtensionUsage  `json:"extensionUsages"`
}

// ExtensionUsage is a module's use of an extension.
type ExtensionUsage struct {
	ExtensionBzlFile string            `json:"extensionBzlFile"`
	ExtensionName    string            `json:"extensionName"`
	Imports          map[string]string `json:"imports"`
	Tags             []Tag             `json:"tags"`
	DevDependency    bool              `json:"devDependency,omitempty"`
}

// Tag is one tag call on an extension proxy.
type Tag struct {
	TagName       string         `json:"tagName"`
	AttributeVals map[string]any `json:"attributeValues"`
	DevDependency bool           `json:"devDependency,omitempty"`
}

// Graph is the resolved module graph keyed by module key, kept in BFS
// order. Bazel's JSON keeps insertion order, so Graph marshals its entries
// in order rather than sorted.
type Graph struct {
	keys    []string
	modules map[string]Module
}

// Add appends a module; re-adding a key replaces it in place.
func (g *Graph) Add(key string, m Module) {
	if g.modules == nil {
		g.modules = make(map[string]Module)
	}
	if _, ok := g.modules[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.modules[key] = m
}

// Get returns the module stored under key.
func (g Graph) Get(key string) (Module, bool) {
	m, ok := g.modules[key]
	return m, ok
}

// Keys returns the module keys in order.
func (g Graph) Keys() []string { return slices.Clone(g.keys) }

// Len returns the number of modules.
func (g Graph) Len() int { return len(g.keys) }

// MarshalJSON writes the modules in order.
func (g Graph) MarshalJSON() ([]byte, error) {
	if len(g.keys) == 0 {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range g.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, err := json.Marshal(g.modules[k])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the modules, keeping their order.
func (g *Graph) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*g = Graph{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("moduleDepGraph: expected object, got %v", tok)
	}

	*g = Graph{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("moduleDepGraph: expected key, got %v", tok)
		}
		var m Module
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("moduleDepGraph[%s]: %w", key, err)
		}
		g.Add(key, m)
	}
	_, err = dec.Token()
	return err
}
