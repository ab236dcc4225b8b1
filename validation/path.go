package validation

import (
	"fmt"
	"path/filepath"
)

// IsPathSafe reports whether candidate contains only characters expected
// in a filesystem path: letters, digits, '/', '\', '.', '-', '_', ':' and
// spaces. The empty string is rejected.
//
// Unlike IsRefSafe this predicate tolerates "..", because relative paths
// are legitimate caller input here. What it refuses is anything a shell
// would interpret: quotes, '$', backticks, ';', '|', '&', '<', '>',
// newlines, and every other metacharacter, by virtue of not being in the
// alphabet.
func IsPathSafe(candidate string) bool {
	if candidate == "" {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		if !isPathByte(candidate[i]) {
			return false
		}
	}
	return true
}

// isPathByte reports whether c belongs to the path alphabet. The table is
// independent of isRefByte: the two predicates do not share a notion of
// "safe" and evolve separately.
func isPathByte(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '/' || c == '\\' || c == '.' || c == '-' ||
		c == '_' || c == ':' || c == ' '
}

// SanitizePath screens path with IsPathSafe and returns its lexically
// cleaned form. It never consults the filesystem.
func SanitizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathRejected)
	}
	if !IsPathSafe(path) {
		return "", fmt.Errorf("%w: character outside the path alphabet", ErrPathRejected)
	}
	return filepath.Clean(path), nil
}
