package downloader

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameBytes caps a sanitized file name, extension included
const MaxNameBytes = 200

const forbiddenChars = `<>:"/\|?*`

// SanitizeFilename makes name safe to create on any common filesystem.
// The result is never empty and never longer than MaxNameBytes.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == utf8.RuneError:
			b.WriteRune('_')
		case strings.ContainsRune(forbiddenChars, r), unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	out = strings.Trim(out, " .")
	if out == "" {
		return "attachment"
	}
	return truncateName(out, MaxNameBytes)
}

// truncateName shortens name to at most max bytes on a rune boundary,
// keeping a short extension intact.
func truncateName(name string, max int) string {
	if len(name) <= max {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > 16 || len(ext) >= max {
		ext = ""
	}
	stem := cutRunes(strings.TrimSuffix(name, ext), max-len(ext))
	stem = strings.TrimRight(stem, " .")
	if stem == "" {
		stem = "attachment"
	}
	return stem + ext
}

// cutRunes trims s to at most max bytes without splitting a rune
func cutRunes(s string, max int) string {
	if max < 0 {
		max = 0
	}
	for len(s) > max {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}

// HasExtension reports whether name ends in a plausible file extension
func HasExtension(name string) bool {
	ext := filepath.Ext(name)
	return len(ext) > 1 && len(ext) <= 16 && !strings.ContainsAny(ext, " ")
}
