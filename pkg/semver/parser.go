// Package semver parses versioned method references and picks the best
// registered version for a requested range.
package semver

import (
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "semver:parser"

// MethodRef is a parsed method reference such as "billing.charge@^2".
type MethodRef struct {
	// Name is the method name without the version part.
	Name string
	// Range is the requested version range ("^2.1.0", "2", "2.1.3") or empty.
	Range string
	// Raw is the trimmed input.
	Raw string
}

// Versioned reports whether the reference asks for a specific version range.
func (r *MethodRef) Versioned() bool {
	return r.Range != ""
}

var (
	methodNameRegex   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9._:-]*$`)
	majorOnlyRegex    = regexp.MustCompile(`^\d+$`)
	exactVersionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[\w.]+)?(\+[\w.]+)?$`)
)

// ParseMethodRef parses a method reference.
//
// Supported formats:
//   - users.get            (no version)
//   - users.get@2          (major only)
//   - users.get@2.1.0      (exact version)
//   - users.get@^2.1.0     (caret range)
//   - users.get@~2.1.0     (tilde range)
//   - users.get@>=2.0.0    (comparison range)
func ParseMethodRef(input string) (*MethodRef, error) {
	raw := strings.TrimSpace(input)

	name, rangeStr, hasAt := strings.Cut(raw, "@")
	if name == "" {
		return nil, fmt.Errorf("%s - empty method name: %q", logPrefix, input)
	}
	if !ValidateMethodName(name) {
		return nil, fmt.Errorf("%s - invalid method name: %s", logPrefix, name)
	}
	if hasAt && strings.TrimSpace(rangeStr) == "" {
		return nil, fmt.Errorf("%s - empty version range: %s", logPrefix, raw)
	}

	return &MethodRef{
		Name:  name,
		Range: strings.TrimSpace(rangeStr),
		Raw:   raw,
	}, nil
}

// IsMajorOnly checks if a range is a major-only specifier (e.g., "3").
func IsMajorOnly(rangeStr string) bool {
	return majorOnlyRegex.MatchString(rangeStr)
}

// IsExactVersion checks if a range is an exact version (e.g., "3.2.1").
func IsExactVersion(rangeStr string) bool {
	return exactVersionRegex.MatchString(rangeStr)
}

// ExtractMajorFromRange extracts the major version if the range is major-only.
// Returns -1 if not a major-only range.
func ExtractMajorFromRange(rangeStr string) int {
	if !IsMajorOnly(rangeStr) {
		return -1
	}
	var major int
	fmt.Sscanf(rangeStr, "%d", &major)
	return major
}

// BuildMethodRef joins a method name and version into "name@version".
func BuildMethodRef(name, version string) string {
	if version != "" {
		return name + "@" + version
	}
	return name
}

// ValidateMethodName validates a method name (letters, digits, dots, colons, hyphens, underscores).
func ValidateMethodName(name string) bool {
	return methodNameRegex.MatchString(name)
}
