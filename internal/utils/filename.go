package utils

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxFilenameBytes = 200

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"|?*\x00-\x1f\x7f]`)
	multipleSpaces       = regexp.MustCompile(`\s+`)
)

// SanitizeFilename reduces a client-supplied upload name to a safe base name
// for staging and audit records. Directory parts are dropped, the extension
// survives truncation, and an empty result becomes "upload".
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, `\`, "/")
	filename = path.Base(filename)
	if filename == "." || filename == "/" {
		filename = ""
	}

	filename = invalidFilenameChars.ReplaceAllString(filename, " ")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)
	filename = strings.TrimLeft(filename, ".")

	if len(filename) > maxFilenameBytes {
		ext := path.Ext(filename)
		if len(ext) > 16 {
			ext = ""
		}
		filename = truncateUTF8(strings.TrimSuffix(filename, ext), maxFilenameBytes-len(ext)) + ext
	}

	if filename == "" {
		return "upload"
	}
	return filename
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimSpace(s[:n])
}
