package objects

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var identityPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}[-:]\d{2}[-:]\d{2}(\.\d{1,9})?Z`)

var containerExtensions = []string{".tar.gz", ".tar.lz4", ".tgz", ".tar", ".diff"}

// ExtractIdentity derives a snapshot identity from a container or diff
// file name. The embedded UTC timestamp wins; otherwise the base name
// stripped of known container extensions is used.
func ExtractIdentity(name string) string {
	base := filepath.Base(filepath.Clean(name))
	if match := identityPattern.FindString(base); match != "" {
		return match
	}
	for _, ext := range containerExtensions {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

// IdentityTime parses the timestamp carried by an identity. Both the
// filesystem-safe form (dashes in the time part) and RFC 3339 are accepted.
func IdentityTime(identity string) (time.Time, bool) {
	match := identityPattern.FindString(identity)
	if match == "" {
		return time.Time{}, false
	}
	date, clock, _ := strings.Cut(match, "T")
	if len(clock) >= 8 {
		clock = strings.Replace(clock[:8], "-", ":", 2) + clock[8:]
	}
	t, err := time.Parse(time.RFC3339Nano, date+"T"+clock)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// CompareIdentities orders identities by their timestamp, falling back to
// lexical order when either side carries none.
func CompareIdentities(a, b string) int {
	ta, oka := IdentityTime(a)
	tb, okb := IdentityTime(b)
	if oka && okb {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}
