// Package semver implements parsing, ordering, and range matching for
// semantic version strings as used by registry entries and project manifests.
package semver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	interrs "github.com/cpm-sh/cpm/internal/errors"
)

// Special version tokens that compare greater than any concrete version.
const (
	Latest = "latest"
	Linked = "linked"
)

// semverPattern matches MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD] per semver.org.
var semverPattern = regexp.MustCompile(
	`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
		`(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?` +
		`(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`,
)

// Version is a parsed semantic version.
// Sentinel tokens ('latest', 'linked') are preserved verbatim and order above
// every concrete version.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Build      string

	// sentinel holds the original special token, if any.
	sentinel string
}

// Parse parses a semantic version string.
// Returns ErrInvalidVersion when the string is neither valid semver nor one of
// the special tokens.
func Parse(version string) (Version, error) {
	version = strings.TrimSpace(version)

	if version == Latest || version == Linked {
		return Version{sentinel: version}, nil
	}

	m := semverPattern.FindStringSubmatch(version)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", interrs.ErrInvalidVersion, version)
	}

	// The pattern guarantees numeric match groups.
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	return Version{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Prerelease: m[4],
		Build:      m[5],
	}, nil
}

// IsSentinel reports whether the version is one of the special tokens.
func (v Version) IsSentinel() bool {
	return v.sentinel != ""
}

// String renders the version back to its canonical form.
func (v Version) String() string {
	if v.IsSentinel() {
		return v.sentinel
	}

	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}

	return s
}

// Compare orders two parsed versions, returning -1, 0, or 1.
// Build metadata is ignored per the semver specification.
func (v Version) Compare(o Version) int {
	// Sentinels sort above every concrete version, and equal to each other.
	switch {
	case v.IsSentinel() && o.IsSentinel():
		return 0
	case v.IsSentinel():
		return 1
	case o.IsSentinel():
		return -1
	}

	if v.Major != o.Major {
		return sign(v.Major - o.Major)
	}
	if v.Minor != o.Minor {
		return sign(v.Minor - o.Minor)
	}
	if v.Patch != o.Patch {
		return sign(v.Patch - o.Patch)
	}

	// A version without a prerelease is greater than the same core with one.
	switch {
	case v.Prerelease == "" && o.Prerelease == "":
		return 0
	case v.Prerelease == "":
		return 1
	case o.Prerelease == "":
		return -1
	}

	return comparePrerelease(v.Prerelease, o.Prerelease)
}

// Compare parses and orders two version strings, returning -1, 0, or 1.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}

	return va.Compare(vb), nil
}

// Satisfies reports whether version matches the supplied range specifier.
// Supported forms: exact ("1.2.3"), caret ("^1.2.3"), tilde ("~1.2.3"),
// comparison operators (">", ">=", "<", "<="), and wildcards ("1.x", "1.2.*").
// The specifier 'latest' matches any valid version.
func Satisfies(version, rangeSpec string) (bool, error) {
	v, err := Parse(version)
	if err != nil {
		return false, err
	}
	rangeSpec = strings.TrimSpace(rangeSpec)

	if rangeSpec == Latest {
		return true, nil
	}

	switch {
	case strings.HasPrefix(rangeSpec, "^"):
		base, err := Parse(rangeSpec[1:])
		if err != nil {
			return false, err
		}
		// Compatible within the same major version.
		return v.Major == base.Major && v.Compare(base) >= 0, nil

	case strings.HasPrefix(rangeSpec, "~"):
		base, err := Parse(rangeSpec[1:])
		if err != nil {
			return false, err
		}
		// Compatible within the same major.minor version.
		return v.Major == base.Major && v.Minor == base.Minor && v.Patch >= base.Patch, nil

	case strings.HasPrefix(rangeSpec, ">="):
		return compareAgainst(v, rangeSpec[2:], func(c int) bool { return c >= 0 })

	case strings.HasPrefix(rangeSpec, ">"):
		return compareAgainst(v, rangeSpec[1:], func(c int) bool { return c > 0 })

	case strings.HasPrefix(rangeSpec, "<="):
		return compareAgainst(v, rangeSpec[2:], func(c int) bool { return c <= 0 })

	case strings.HasPrefix(rangeSpec, "<"):
		return compareAgainst(v, rangeSpec[1:], func(c int) bool { return c < 0 })
	}

	if strings.Contains(rangeSpec, "x") || strings.Contains(rangeSpec, "*") {
		return matchWildcard(v, rangeSpec)
	}

	base, err := Parse(rangeSpec)
	if err != nil {
		return false, err
	}

	return v.Compare(base) == 0, nil
}

// Bump levels.
const (
	BumpMajor = "major"
	BumpMinor = "minor"
	BumpPatch = "patch"
)

// Bump increments the given component and zeroes lower components, discarding
// any prerelease and build metadata.
func Bump(version, level string) (string, error) {
	v, err := Parse(version)
	if err != nil {
		return "", err
	}
	if v.IsSentinel() {
		return "", fmt.Errorf("%w: cannot bump %q", interrs.ErrInvalidVersion, version)
	}

	switch level {
	case BumpMajor:
		v.Major++
		v.Minor = 0
		v.Patch = 0
	case BumpMinor:
		v.Minor++
		v.Patch = 0
	case BumpPatch:
		v.Patch++
	default:
		return "", fmt.Errorf("invalid bump level %q (want major, minor, or patch)", level)
	}

	v.Prerelease = ""
	v.Build = ""

	return v.String(), nil
}

// LatestOf returns the highest version among the supplied strings, skipping
// any that fail to parse. Returns empty when nothing parses.
func LatestOf(versions []string) string {
	var (
		best    Version
		bestStr string
		found   bool
	)

	for _, raw := range versions {
		v, err := Parse(raw)
		if err != nil {
			continue
		}
		if !found || v.Compare(best) > 0 {
			best = v
			bestStr = raw
			found = true
		}
	}

	return bestStr
}

func compareAgainst(v Version, base string, ok func(int) bool) (bool, error) {
	b, err := Parse(strings.TrimSpace(base))
	if err != nil {
		return false, err
	}

	return ok(v.Compare(b)), nil
}

func matchWildcard(v Version, spec string) (bool, error) {
	parts := strings.Split(strings.ReplaceAll(spec, "*", "x"), ".")
	segments := []int{v.Major, v.Minor, v.Patch}

	for i, part := range parts {
		if i >= len(segments) || part == "x" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return false, fmt.Errorf("%w: wildcard segment %q in %q", interrs.ErrInvalidVersion, part, spec)
		}
		if segments[i] != n {
			return false, nil
		}
	}

	return true, nil
}

// comparePrerelease compares dot-separated prerelease identifiers:
// numeric identifiers compare numerically, alphanumeric lexically, and a
// shorter identifier list sorts lower when a common prefix matches.
func comparePrerelease(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")

	for i := 0; i < len(pa) || i < len(pb); i++ {
		if i >= len(pa) {
			return -1
		}
		if i >= len(pb) {
			return 1
		}

		na, aNum := parseNumericIdentifier(pa[i])
		nb, bNum := parseNumericIdentifier(pb[i])

		switch {
		case aNum && bNum:
			if na != nb {
				return sign(na - nb)
			}
		case aNum:
			// Numeric identifiers sort below alphanumeric ones.
			return -1
		case bNum:
			return 1
		default:
			if c := strings.Compare(pa[i], pb[i]); c != 0 {
				return c
			}
		}
	}

	return 0
}

func parseNumericIdentifier(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
