package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// pathSegmentReplacer maps characters that are invalid in a path segment on
// common filesystems to underscores.
var pathSegmentReplacer = strings.NewReplacer(
	"\\", "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// SanitizePathSegment returns name as a single safe path segment. The value is
// NFC-normalized so visually identical titles from different sources map to
// the same bytes on disk. Returns "" for blank input.
func SanitizePathSegment(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = norm.NFC.String(name)
	name = pathSegmentReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	// "." and ".." would escape the layout.
	if strings.Trim(name, ".") == "" {
		return strings.Repeat("_", len(name))
	}
	return name
}
