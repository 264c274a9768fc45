package label

import (
	"fmt"
	"strings"
)

// Label is a parsed, not yet canonicalized label.
//
// Accepted forms:
//
//	@@canonical//pkg:name
//	@apparent//pkg:name
//	@//pkg:name      (apparent name "")
//	//pkg:name       (the repository the label is written in)
//	@repo            (shorthand for @repo//:repo)
type Label struct {
	Repo      string
	Canonical bool
	Relative  bool
	Pkg       string
	Name      string
}

// Parse parses a label string.
func Parse(s string) (Label, error) {
	var l Label
	rest := s
	switch {
	case strings.HasPrefix(rest, "@@"):
		l.Canonical = true
		rest = rest[2:]
	case strings.HasPrefix(rest, "@"):
		rest = rest[1:]
	case strings.HasPrefix(rest, "//"):
		l.Relative = true
	default:
		return Label{}, fmt.Errorf("invalid label %q: must start with @, @@ or //", s)
	}

	if !l.Relative {
		idx := strings.Index(rest, "//")
		if idx == -1 {
			// @repo shorthand
			if rest == "" || strings.Contains(rest, ":") {
				return Label{}, fmt.Errorf("invalid label %q: missing //", s)
			}
			l.Repo, l.Name = rest, rest
			return l, l.validateRepo(s)
		}
		l.Repo = rest[:idx]
		rest = rest[idx:]
		if err := l.validateRepo(s); err != nil {
			return Label{}, err
		}
	}

	rest = strings.TrimPrefix(rest, "//")
	if pkg, name, ok := strings.Cut(rest, ":"); ok {
		l.Pkg, l.Name = pkg, name
	} else {
		l.Pkg = rest
		l.Name = rest[strings.LastIndex(rest, "/")+1:]
	}
	if l.Name == "" {
		return Label{}, fmt.Errorf("invalid label %q: empty target name", s)
	}
	return l, nil
}

func (l Label) validateRepo(raw string) error {
	if l.Repo == "" {
		return nil
	}
	var err error
	if l.Canonical {
		_, err = NewRepositoryName(l.Repo)
	} else {
		err = ValidateApparentRepo(l.Repo)
	}
	if err != nil {
		return fmt.Errorf("invalid label %q: %w", raw, err)
	}
	return nil
}

// String renders the label in its original form.
func (l Label) String() string {
	var b strings.Builder
	switch {
	case l.Canonical:
		b.WriteString("@@" + l.Repo)
	case !l.Relative:
		b.WriteString("@" + l.Repo)
	}
	b.WriteString("//" + l.Pkg + ":" + l.Name)
	return b.String()
}

// Mapper resolves apparent repository names. repomap.Mapping implements it.
type Mapper interface {
	Get(apparent string) (RepositoryName, bool)
}

// Canonicalize resolves l to a canonical label. Relative labels resolve to
// current; canonical labels bypass the mapping.
func (l Label) Canonicalize(m Mapper, current RepositoryName) (CanonicalLabel, error) {
	switch {
	case l.Canonical:
		return CanonicalLabel{Repo: RepositoryName(l.Repo), Pkg: l.Pkg, Name: l.Name}, nil
	case l.Relative:
		return CanonicalLabel{Repo: current, Pkg: l.Pkg, Name: l.Name}, nil
	}
	repo, ok := m.Get(l.Repo)
	if !ok {
		return CanonicalLabel{}, fmt.Errorf("no repository visible as '@%s' from repository '%s'", l.Repo, current)
	}
	return CanonicalLabel{Repo: repo, Pkg: l.Pkg, Name: l.Name}, nil
}

// CanonicalLabel is a label whose repository is a canonical name.
// It is comparable and usable as a map key.
type CanonicalLabel struct {
	Repo RepositoryName
	Pkg  string
	Name string
}

// String renders the label as "@@repo//pkg:name".
func (l CanonicalLabel) String() string {
	return "@@" + string(l.Repo) + "//" + l.Pkg + ":" + l.Name
}
