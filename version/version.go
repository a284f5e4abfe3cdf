// Package version carries build metadata and the minimal semver
// comparison the runtime-bundle loader uses to gate bundles on a
// min_version field.
package version

import (
	"strconv"
	"strings"
)

// Injected at build time:
//
//	go build -ldflags "-X judgecell.dev/warden/version.Version=0.1.0 \
//	  -X judgecell.dev/warden/version.Commit=abc123 \
//	  -X judgecell.dev/warden/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "0.1.0-dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Full returns the version with commit and build date, for logs and
// health reports.
func Full() string {
	return Version + " (commit=" + Commit + " date=" + BuildDate + ")"
}

// Compare orders two version strings by their numeric X.Y.Z prefix and
// returns -1, 0 or +1. Pre-release suffixes ("0.1.0-dev") do not
// participate in the ordering: a bundle built against 0.2.0 is usable on
// a 0.2.0-rc1 warden.
func Compare(a, b string) int {
	av, bv := numericPrefix(a), numericPrefix(b)
	for i := range av {
		if av[i] != bv[i] {
			if av[i] < bv[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// numericPrefix parses the leading X.Y.Z of a version string. Missing or
// malformed components read as zero, so an empty string is 0.0.0.
func numericPrefix(v string) [3]int {
	if i := strings.IndexByte(v, '-'); i >= 0 {
		v = v[:i]
	}
	parts := strings.SplitN(v, ".", 3)
	var out [3]int
	for i := 0; i < len(parts) && i < 3; i++ {
		n, _ := strconv.Atoi(parts[i])
		out[i] = n
	}
	return out
}
