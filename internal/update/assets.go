package update

import (
	"runtime"
	"strings"
)

// Platform identifies an install target for asset selection.
type Platform string

// Supported platforms. Anything else never matches an asset.
const (
	PlatformWindows Platform = "windows"
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
)

// CurrentPlatform maps runtime.GOOS to a Platform. Unsupported operating
// systems return an empty Platform, for which selection always fails.
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMacOS
	case "linux":
		return PlatformLinux
	default:
		return Platform("")
	}
}

// matchRule is a single predicate in the per-platform rule table. A rule
// matches when the lowercased asset name contains one of the substrings or
// ends with one of the suffixes. excludes veto a match ("win" must not
// catch "darwin").
type matchRule struct {
	substrings []string
	suffixes   []string
	excludes   []string
}

func (r matchRule) matches(name string) bool {
	for _, ex := range r.excludes {
		if strings.Contains(name, ex) {
			return false
		}
	}
	for _, s := range r.substrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	for _, suf := range r.suffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// platformRules is the prioritized rule table: platform → ordered match
// predicates. Matching is case-insensitive; rules are tried in order for
// each asset.
var platformRules = map[Platform][]matchRule{
	PlatformWindows: {
		{substrings: []string{"windows"}},
		{substrings: []string{"win"}, excludes: []string{"darwin"}},
		{suffixes: []string{".msi", ".exe"}},
	},
	PlatformMacOS: {
		{substrings: []string{"macos", "darwin", "mac"}},
		{suffixes: []string{".dmg", ".pkg"}},
	},
	PlatformLinux: {
		{substrings: []string{"linux"}},
		{suffixes: []string{".appimage", ".deb", ".rpm"}},
	},
}

// SelectAsset picks the artifact appropriate for the platform: the first
// asset in list order that any rule matches. Returns nil when nothing
// matches or the platform is unknown. Deterministic and side-effect free;
// no size or other heuristics.
func SelectAsset(assets []Asset, platform Platform) *Asset {
	rules, ok := platformRules[platform]
	if !ok {
		return nil
	}

	for i := range assets {
		name := strings.ToLower(assets[i].Name)
		for _, rule := range rules {
			if rule.matches(name) {
				return &assets[i]
			}
		}
	}
	return nil
}
