package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"

	"github.com/albertocavalcante/go-bzlresolve/depgraph"
)

// Input is everything a lockfile records about one resolution.
type Input struct {
	// ModuleFile is the content of the root MODULE.bazel.
	ModuleFile []byte
	Graph      *depgraph.DepGraph[*depgraph.Module]
	Flags      Flags

	RegistryFileHashes     map[string]string
	SelectedYankedVersions map[depgraph.ModuleKey]string
}

// New builds the lockfile of a resolution.
func New(in Input) *Lockfile {
	lf := &Lockfile{
		Version:                CurrentVersion,
		ModuleFileHash:         HashContent(in.ModuleFile),
		Flags:                  in.Flags,
		RegistryFileHashes:     maps.Clone(in.RegistryFileHashes),
		SelectedYankedVersions: make(map[string]string, len(in.SelectedYankedVersions)),
	}
	for key, reason := range in.SelectedYankedVersions {
		lf.SelectedYankedVersions[key.String()] = reason
	}
	if in.Graph != nil {
		for key, m := range in.Graph.All() {
			lf.ModuleDepGraph.Add(key.String(), moduleEntry(m))
		}
	}
	lf.normalize()
	return lf
}

func moduleEntry(m *depgraph.Module) Module {
	out := Module{
		Name:               m.Name,
		Version:            m.Version,
		Key:                m.Key.String(),
		RepoName:           m.RepoName,
		CompatibilityLevel: m.CompatibilityLevel,
		Registry:           m.Registry,
		BazelCompatibility: slices.Clone(m.BazelCompatibility),
		Deps:               make(map[string]string, len(m.Deps)),
		ExtensionUsages:    make([]ExtensionUsage, 0, len(m.ExtensionUsages)),
	}
	for _, d := range m.Deps {
		out.Deps[d.RepoName] = d.Key.String()
	}
	for _, u := range m.ExtensionUsages {
		eu := ExtensionUsage{
			ExtensionBzlFile: u.BzlFile,
			ExtensionName:    u.Name,
			Imports:          make(map[string]string, len(u.Imports)),
			Tags:             make([]Tag, 0, len(u.Tags)),
			DevDependency:    u.DevDependency,
		}
		for _, imp := range u.Imports {
			eu.Imports[imp.Apparent] = imp.Internal
		}
		for _, tag := range u.Tags {
			eu.Tags = append(eu.Tags, Tag{TagName: tag.Class, AttributeVals: tag.Attrs, DevDependency: tag.DevDependency})
		}
		out.ExtensionUsages = append(out.ExtensionUsages, eu)
	}
	return out
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
