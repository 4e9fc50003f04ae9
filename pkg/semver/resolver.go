package semver

import (
	"fmt"
	"sort"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const resolverLogPrefix = "semver:resolver"

// Candidate is one registered version of a method.
type Candidate struct {
	// Key identifies the registration the candidate stands for.
	Key           string
	Major         int
	Minor         int
	Patch         int
	Prerelease    string
	Deprecated    bool
	VersionString string
}

// NewCandidate parses version into a Candidate.
func NewCandidate(key, version string, deprecated bool) (Candidate, error) {
	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return Candidate{}, fmt.Errorf("%s - invalid version %q: %w", resolverLogPrefix, version, err)
	}
	return Candidate{
		Key:           key,
		Major:         int(sv.Major()),
		Minor:         int(sv.Minor()),
		Patch:         int(sv.Patch()),
		Prerelease:    sv.Prerelease(),
		Deprecated:    deprecated,
		VersionString: ToVersionString(int(sv.Major()), int(sv.Minor()), int(sv.Patch()), sv.Prerelease()),
	}, nil
}

// ValidateVersion reports whether version is a valid semantic version.
func ValidateVersion(version string) error {
	if _, err := masterminds.NewVersion(version); err != nil {
		return fmt.Errorf("%s - invalid version %q: %w", resolverLogPrefix, version, err)
	}
	return nil
}

// Compare orders two versions by precedence. Empty or unparsable versions
// fall back to string order.
func Compare(a, b string) int {
	va, errA := masterminds.NewVersion(a)
	vb, errB := masterminds.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}

// ToVersionString converts version components to a version string.
func ToVersionString(major, minor, patch int, prerelease string) string {
	base := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if prerelease != "" {
		return base + "-" + prerelease
	}
	return base
}

// ResolveVersionParams holds parameters for ResolveVersion.
type ResolveVersionParams struct {
	Candidates []Candidate
	Range      string // SemVer range, major-only, exact, or empty
	// AllowDeprecated lets a deprecated version win over a newer-or-equal active one.
	// When false, active versions are preferred and deprecated ones are a fallback.
	AllowDeprecated bool
}

// ResolveVersion finds the best matching candidate for a range. An empty range
// picks the latest stable version of the highest major.
func ResolveVersion(params ResolveVersionParams) *Candidate {
	if len(params.Candidates) == 0 {
		return nil
	}
	candidates := make([]Candidate, len(params.Candidates))
	copy(candidates, params.Candidates)

	if params.Range == "" {
		return findLatestInMajor(candidates, findHighestMajor(candidates), params.AllowDeprecated)
	}

	if IsMajorOnly(params.Range) {
		return findLatestInMajor(candidates, ExtractMajorFromRange(params.Range), params.AllowDeprecated)
	}

	constraint, err := masterminds.NewConstraint(params.Range)
	if err != nil {
		return findExactVersion(candidates, params.Range)
	}

	var matching []Candidate
	for _, c := range candidates {
		sv, err := masterminds.NewVersion(c.VersionString)
		if err != nil {
			continue
		}
		if constraint.Check(sv) {
			matching = append(matching, c)
		}
	}
	if len(matching) == 0 {
		return nil
	}

	sortVersionsDesc(matching)
	return preferActive(matching, params.AllowDeprecated)
}

// GetUniqueMajors returns all unique major versions sorted descending.
func GetUniqueMajors(candidates []Candidate) []int {
	seen := make(map[int]bool)
	var majors []int

	for _, c := range candidates {
		if !seen[c.Major] {
			seen[c.Major] = true
			majors = append(majors, c.Major)
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(majors)))
	return majors
}

// SatisfiesRange checks if a version string satisfies a range.
func SatisfiesRange(version, rangeStr string) bool {
	if IsMajorOnly(rangeStr) {
		sv, err := masterminds.NewVersion(version)
		if err != nil {
			return false
		}
		return int(sv.Major()) == ExtractMajorFromRange(rangeStr)
	}

	constraint, err := masterminds.NewConstraint(rangeStr)
	if err != nil {
		return false
	}

	sv, err := masterminds.NewVersion(version)
	if err != nil {
		return false
	}

	return constraint.Check(sv)
}

// --- internal helpers ---

func findHighestMajor(candidates []Candidate) int {
	highest := -1
	for _, c := range candidates {
		if c.Major > highest {
			highest = c.Major
		}
	}
	return highest
}

func findLatestInMajor(candidates []Candidate, major int, allowDeprecated bool) *Candidate {
	var inMajor []Candidate
	for _, c := range candidates {
		if c.Major == major {
			inMajor = append(inMajor, c)
		}
	}

	if len(inMajor) == 0 {
		return nil
	}

	// Prefer latest stable (non-prerelease) in major; if none, use latest including prerelease
	var stable []Candidate
	for _, c := range inMajor {
		if c.Prerelease == "" {
			stable = append(stable, c)
		}
	}
	if len(stable) > 0 {
		inMajor = stable
	}

	sortVersionsDesc(inMajor)
	return preferActive(inMajor, allowDeprecated)
}

// preferActive returns the first active candidate of a descending list, falling
// back to the newest one.
func preferActive(sorted []Candidate, allowDeprecated bool) *Candidate {
	if !allowDeprecated {
		for i := range sorted {
			if !sorted[i].Deprecated {
				return &sorted[i]
			}
		}
	}
	return &sorted[0]
}

func findExactVersion(candidates []Candidate, versionStr string) *Candidate {
	for i := range candidates {
		if candidates[i].VersionString == versionStr {
			return &candidates[i]
		}
	}
	return nil
}

func sortVersionsDesc(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		vi, err1 := masterminds.NewVersion(candidates[i].VersionString)
		vj, err2 := masterminds.NewVersion(candidates[j].VersionString)
		if err1 != nil || err2 != nil {
			return false
		}
		return vi.GreaterThan(vj)
	})
}
