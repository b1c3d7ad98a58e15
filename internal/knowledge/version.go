package knowledge

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// InitialVersion is the version of newly created knowledge.
const InitialVersion = "1.0.0"

// Version is a parsed knowledge version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion parses MAJOR.MINOR.PATCH with an optional leading "v".
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	var nums [3]int
	for i, p := range parts {
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		for _, r := range p {
			if r < '0' || r > '9' {
				return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String formats the version without a "v" prefix.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// BumpMinor returns the next minor version with the patch reset. It fails
// when the minor number is already the largest int.
func (v Version) BumpMinor() (Version, error) {
	if v.Minor == math.MaxInt {
		return Version{}, fmt.Errorf("%w: minor number of %s cannot grow", ErrInvalidVersion, v)
	}
	return Version{Major: v.Major, Minor: v.Minor + 1}, nil
}

// Compare returns -1, 0 or 1 as v is lower than, equal to or higher than o.
func (v Version) Compare(o Version) int {
	for _, d := range [3]int{v.Major - o.Major, v.Minor - o.Minor, v.Patch - o.Patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	return 0
}

// Bump parses s and returns the next minor version as a string.
func Bump(s string) (string, error) {
	v, err := ParseVersion(s)
	if err != nil {
		return "", err
	}
	next, err := v.BumpMinor()
	if err != nil {
		return "", err
	}
	return next.String(), nil
}
