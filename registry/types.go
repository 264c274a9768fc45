package registry

// Metadata is a module's metadata.json.
type Metadata struct {
	Homepage    string       `json:"homepage,omitempty"`
	Maintainers []Maintainer `json:"maintainers,omitempty"`
	Repository  []string     `json:"repository,omitempty"`

	// Versions lists the available versions in the registry.
	Versions []string `json:"versions"`

	// YankedVersions maps version strings to yank reasons.
	YankedVersions map[string]string `json:"yanked_versions,omitempty"`

	// Deprecated explains why the module should not be used.
	Deprecated string `json:"deprecated,omitempty"`
}

// Maintainer is a module maintainer in metadata.json.
type Maintainer struct {
	GitHub string `json:"github,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Source types.
const (
	SourceArchive   = "archive"
	SourceGit       = "git_repository"
	SourceLocalPath = "local_path"
)

// Source is a module version's source.json. Type selects which of the
// other fields apply.
type Source struct {
	Type string `json:"type,omitempty"`

	// archive
	URL         string            `json:"url,omitempty"`
	Integrity   string            `json:"integrity,omitempty"`
	StripPrefix string            `json:"strip_prefix,omitempty"`
	Patches     map[string]string `json:"patches,omitempty"`
	PatchStrip  int               `json:"patch_strip,omitempty"`
	Overlay     map[string]string `json:"overlay,omitempty"`

	// git_repository
	Remote         string `json:"remote,omitempty"`
	Commit         string `json:"commit,omitempty"`
	Tag            string `json:"tag,omitempty"`
	ShallowSince   string `json:"shallow_since,omitempty"`
	InitSubmodules bool   `json:"init_submodules,omitempty"`

	// local_path
	Path string `json:"path,omitempty"`
}

// Kind returns the source type, defaulting to archive.
func (s *Source) Kind() string {
	if s.Type == "" {
		return SourceArchive
	}
	return s.Type
}

// RegistryConfig is the registry's bazel_registry.json.
type RegistryConfig struct {
	// Mirrors are URL prefixes tried before an archive's own URL.
	Mirrors []string `json:"mirrors,omitempty"`

	// ModuleBasePath anchors relative local_path sources.
	ModuleBasePath string `json:"module_base_path,omitempty"`
}

// IsYanked reports whether version is yanked.
func (m *Metadata) IsYanked(version string) bool {
	_, ok := m.YankedVersions[version]
	return ok
}

// HasVersion reports whether version is listed.
func (m *Metadata) HasVersion(version string) bool {
	for _, v := range m.Versions {
		if v == version {
			return true
		}
	}
	return false
}
