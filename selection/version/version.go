// Package version implements the module version grammar used by Bazel
// registries.
//
// A version is RELEASE[-PRERELEASE][+BUILD]. RELEASE and PRERELEASE are
// dot-separated identifiers; BUILD is accepted and ignored. Unlike semver,
// any number of release identifiers is allowed and identifiers may mix
// letters and digits. The empty version is valid and sorts above every
// other version: it identifies modules whose source comes from a
// non-registry override.
package version

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var versionPattern = regexp.MustCompile(
	`^([a-zA-Z0-9.]+)(?:-([a-zA-Z0-9.-]+))?(?:\+[a-zA-Z0-9.-]+)?$`,
)

// Identifier is one dot-separated segment of a version.
// Digits-only identifiers order numerically and before alphanumeric ones.
type Identifier struct {
	Numeric bool
	Number  uint64
	Text    string
}

// ParseIdentifier classifies a single segment.
func ParseIdentifier(s string) Identifier {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return Identifier{Text: s}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Identifier{Text: s}
	}
	return Identifier{Numeric: true, Number: n, Text: s}
}

// CompareIdentifiers orders two identifiers.
func CompareIdentifiers(a, b Identifier) int {
	switch {
	case a.Numeric && b.Numeric:
		return cmp.Compare(a.Number, b.Number)
	case a.Numeric:
		return -1
	case b.Numeric:
		return 1
	}
	return strings.Compare(a.Text, b.Text)
}

// Version is a parsed module version. The zero value is the empty version.
type Version struct {
	Release    []Identifier
	Prerelease []Identifier
	normalized string
	nonEmpty   bool
}

// Parse parses s. The empty string parses to the empty version.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, nil
	}
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, &ParseError{Version: s, Message: "invalid version format"}
	}
	v := Version{normalized: m[1], nonEmpty: true}
	for _, part := range strings.Split(m[1], ".") {
		if part == "" {
			return Version{}, &ParseError{Version: s, Message: "empty release identifier"}
		}
		v.Release = append(v.Release, ParseIdentifier(part))
	}
	if m[2] != "" {
		v.normalized += "-" + m[2]
		for _, part := range strings.Split(m[2], ".") {
			if part == "" {
				return Version{}, &ParseError{Version: s, Message: "empty prerelease identifier"}
			}
			v.Prerelease = append(v.Prerelease, ParseIdentifier(part))
		}
	}
	return v, nil
}

// MustParse is like Parse but panics on malformed input. Intended for tests
// and constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsEmpty reports whether v is the empty version.
func (v Version) IsEmpty() bool { return !v.nonEmpty }

// IsPrerelease reports whether v carries a prerelease part.
func (v Version) IsPrerelease() bool { return len(v.Prerelease) > 0 }

// String returns the normalized form, without build metadata.
func (v Version) String() string { return v.normalized }

// Compare orders v against o. The empty version is the highest; otherwise
// release identifiers decide, and a prerelease sorts below its release.
func (v Version) Compare(o Version) int {
	if v.IsEmpty() || o.IsEmpty() {
		switch {
		case v.IsEmpty() && o.IsEmpty():
			return 0
		case v.IsEmpty():
			return 1
		default:
			return -1
		}
	}
	if c := compareIdentifiers(v.Release, o.Release); c != 0 {
		return c
	}
	if v.IsPrerelease() != o.IsPrerelease() {
		if v.IsPrerelease() {
			return -1
		}
		return 1
	}
	return compareIdentifiers(v.Prerelease, o.Prerelease)
}

func compareIdentifiers(a, b []Identifier) int {
	for i := range min(len(a), len(b)) {
		if c := CompareIdentifiers(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// ParseError reports a malformed version string.
type ParseError struct {
	Version string
	Message string
}

func (e *ParseError) Error() string {
	return "bad version " + strconv.Quote(e.Version) + ": " + e.Message
}

// Compare orders two version strings. If either fails to parse the strings
// are compared lexicographically; callers that need strictness Parse first.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}

// Sort sorts versions in ascending order.
func Sort(versions []string) {
	slices.SortStableFunc(versions, Compare)
}

// Max returns the higher of a and b.
func Max(a, b string) string {
	if Compare(a, b) >= 0 {
		return a
	}
	return b
}

// Ceiling returns the lowest element of sorted (ascending) that is >= v,
// and false when every element is lower.
func Ceiling(sorted []string, v string) (string, bool) {
	for _, s := range sorted {
		if Compare(s, v) >= 0 {
			return s, true
		}
	}
	return "", false
}
