package codec

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultName replaces executable and application names that cannot be used.
const DefaultName = "rustdesk"

var (
	disallowedFilenameChars = regexp.MustCompile(`[^\w\s\-]`)
	whitespaceRun           = regexp.MustCompile(`\s+`)
)

// SanitizeFilename reduces name to ASCII word characters, hyphens and
// underscores. Any non-ASCII input, or input that sanitizes to nothing,
// yields DefaultName.
func SanitizeFilename(name string) string {
	if name == "" || !isASCII(name) {
		return DefaultName
	}
	name = disallowedFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = whitespaceRun.ReplaceAllString(name, "_")
	if name == "" {
		return DefaultName
	}
	return name
}

// SanitizeAppName keeps name only when it is non-empty ASCII.
func SanitizeAppName(name string) string {
	if name == "" || !isASCII(name) {
		return DefaultName
	}
	return name
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > unicode.MaxASCII {
			return false
		}
	}
	return true
}
