package update

import (
	"strconv"
	"strings"
)

// Ordering results of Compare.
const (
	Less    = -1
	Equal   = 0
	Greater = 1
)

// Compare orders two version strings. The base part (before the first "-")
// is compared as a dot-separated integer tuple; a missing trailing component
// counts as 0 and malformed components parse as 0. At equal base parts a
// release outranks a pre-release, and two pre-release suffixes compare as
// plain strings.
//
// Suffix comparison is deliberately lexicographic, so "beta.2" outranks
// "beta.10". Release tooling pads pre-release counters accordingly.
func Compare(a, b string) int {
	aBase, aPre := splitPrerelease(a)
	bBase, bPre := splitPrerelease(b)

	if c := compareBase(aBase, bBase); c != Equal {
		return c
	}

	switch {
	case aPre == "" && bPre == "":
		return Equal
	case aPre == "":
		return Greater
	case bPre == "":
		return Less
	default:
		return strings.Compare(aPre, bPre)
	}
}

// splitPrerelease splits a version on the first "-" into base and
// pre-release suffix. The leading "v" used by release tags is tolerated.
func splitPrerelease(version string) (base, pre string) {
	version = strings.TrimPrefix(version, "v")
	if idx := strings.Index(version, "-"); idx >= 0 {
		return version[:idx], version[idx+1:]
	}
	return version, ""
}

func compareBase(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	n := len(aParts)
	if len(bParts) > n {
		n = len(bParts)
	}

	for i := 0; i < n; i++ {
		av := componentAt(aParts, i)
		bv := componentAt(bParts, i)
		if av > bv {
			return Greater
		}
		if av < bv {
			return Less
		}
	}
	return Equal
}

// componentAt returns the numeric value of the i-th component, treating
// missing or malformed components as 0.
func componentAt(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return v
}
