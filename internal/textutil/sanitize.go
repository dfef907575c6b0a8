package textutil

import (
	"strings"
	"unicode"
)

// SanitizeFileName makes a group label usable inside a file name. Path
// separators become underscores; characters Windows rejects and control
// characters are dropped. Japanese text passes through unchanged.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case strings.ContainsRune(`<>:"|?*`, r), unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(cleaned)
}
