// Package version decides whether the installed rustowl binary matches the
// release this build of borrowscope was written against.
//
// The comparison is deliberately strict: any drift in major, minor, patch, or
// pre-release tag triggers reinstallation. Decoration payloads are not
// guaranteed stable across server releases, so "close enough" is not good
// enough here.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Required is the rustowl release this client is pinned to.
var Required = Version{Major: 0, Minor: 4, Patch: 2}

// Version is a parsed semantic version triple with an optional
// pre-release tag.
type Version struct {
	Major int
	Minor int
	Patch int
	Pre   string
}

// String renders the version without a leading "v".
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	return s
}

// Equal reports whether all four components match exactly.
func (v Version) Equal(other Version) bool {
	return v.Major == other.Major &&
		v.Minor == other.Minor &&
		v.Patch == other.Patch &&
		v.Pre == other.Pre
}

// Parse parses "major.minor.patch[-pre]" with an optional "v" prefix and
// surrounding whitespace, as printed by `rustowl --version --quiet`.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version string")
	}

	canonical := s
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	core := strings.TrimPrefix(canonical, "v")
	// Build metadata is not part of the identity check. It is cut
	// before the pre-release split: metadata may itself contain '-'.
	if idx := strings.IndexByte(core, '+'); idx >= 0 {
		core = core[:idx]
	}
	var pre string
	if idx := strings.IndexByte(core, '-'); idx >= 0 {
		pre = core[idx+1:]
		core = core[:idx]
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: want major.minor.patch", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Pre: pre}, nil
}

// NeedsUpdate reports whether the installed binary must be replaced.
// An empty or unparseable installed version counts as outdated: a binary
// that cannot identify itself cannot be trusted to speak the protocol.
func NeedsUpdate(installed string, required Version) bool {
	v, err := Parse(installed)
	if err != nil {
		return true
	}
	return !v.Equal(required)
}
