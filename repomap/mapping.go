// Package repomap assigns canonical repository names to the modules of a
// resolved graph and builds the apparent-to-canonical mappings each
// repository sees.
package repomap

import (
	"maps"
	"slices"
	"strings"

	"github.com/albertocavalcante/go-bzlresolve/label"
)

// Mapping maps apparent repository names, as written by one repository,
// to canonical names. A Mapping is immutable; the With and Compose
// operators return new values.
type Mapping struct {
	entries map[string]label.RepositoryName
	owner   label.RepositoryName
	// fallback makes unmapped apparent names resolve to the canonical
	// repository of the same name. Only legacy repositories have it.
	fallback bool
}

var _ label.Mapper = Mapping{}

// New returns a strict mapping owned by owner.
func New(entries map[string]label.RepositoryName, owner label.RepositoryName) Mapping {
	return Mapping{entries: maps.Clone(entries), owner: owner}
}

// NewAllowingFallback returns a mapping in which unmapped names resolve to
// themselves. Such mappings have no owner.
func NewAllowingFallback(entries map[string]label.RepositoryName) Mapping {
	return Mapping{entries: maps.Clone(entries), fallback: true}
}

// Get returns the canonical name apparent maps to. ok is false when the
// name is not visible from the owner.
func (m Mapping) Get(apparent string) (label.RepositoryName, bool) {
	if r, ok := m.entries[apparent]; ok {
		return r, true
	}
	if m.fallback {
		return label.RepositoryName(apparent), true
	}
	return "", false
}

// Entries returns a copy of the explicit entries.
func (m Mapping) Entries() map[string]label.RepositoryName {
	return maps.Clone(m.entries)
}

// Owner returns the repository the mapping belongs to.
func (m Mapping) Owner() label.RepositoryName { return m.owner }

// AllowsFallback reports whether unmapped names resolve to themselves.
func (m Mapping) AllowsFallback() bool { return m.fallback }

// Len returns the number of explicit entries.
func (m Mapping) Len() int { return len(m.entries) }

// WithAdditionalMappings returns m widened by additional. On a collision
// the entry already in m wins. Owner and fallback are kept.
func (m Mapping) WithAdditionalMappings(additional map[string]label.RepositoryName) Mapping {
	entries := maps.Clone(additional)
	if entries == nil {
		entries = make(map[string]label.RepositoryName, len(m.entries))
	}
	maps.Copy(entries, m.entries)
	return Mapping{entries: entries, owner: m.owner, fallback: m.fallback}
}

// ComposeWith returns a fallback-allowing mapping containing other's
// entries plus m's, where each of m's targets is first looked up, by name,
// in other. Targets other cannot see are kept as they are. m's entries win
// on a collision. other must not allow fallback.
func (m Mapping) ComposeWith(other Mapping) Mapping {
	if other.fallback {
		panic("repomap: ComposeWith on a fallback-allowing mapping")
	}
	entries := maps.Clone(other.entries)
	if entries == nil {
		entries = make(map[string]label.RepositoryName, len(m.entries))
	}
	for apparent, target := range m.entries {
		if mapped, ok := other.Get(target.Name()); ok {
			entries[apparent] = mapped
		} else {
			entries[apparent] = target
		}
	}
	return NewAllowingFallback(entries)
}

// String renders the mapping deterministically, for diagnostics.
func (m Mapping) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, k := range slices.Sorted(maps.Keys(m.entries)) {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(m.entries[k].String())
	}
	b.WriteString("}")
	return b.String()
}
