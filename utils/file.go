package utils

import (
	"path/filepath"
	"strings"
)

// GetFileNameWithoutExt extracts filename without extension from a file path
func GetFileNameWithoutExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsHTMLFile reports whether path has an HTML extension.
func IsHTMLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

// TruncateString shortens s to maxLength runes, for logging.
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	return string(runes[:maxLength]) + "..."
}
