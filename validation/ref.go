package validation

import "strings"

// IsRefSafe reports whether candidate is acceptable as a version-control
// reference name (branch, tag, or remote-tracking ref). The safe alphabet
// is letters, digits, '_', '.' and '-', with '/' separating non-empty
// segments.
//
// Rejection is structural, not contextual: an empty string, a character
// outside the alphabet, a leading '-', or ".." anywhere fails regardless
// of how the reference would be used downstream.
func IsRefSafe(candidate string) bool {
	if candidate == "" {
		return false
	}

	// A leading dash would parse as an option flag in the child's argv.
	if candidate[0] == '-' {
		return false
	}

	// ".." is refused anywhere, including inside a segment, so range
	// syntax like "main..feature" can never pass as a single ref.
	if strings.Contains(candidate, "..") {
		return false
	}

	prev := byte('/')
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		if c == '/' {
			// Empty segments cover leading slashes and "a//b".
			if prev == '/' {
				return false
			}
			prev = c
			continue
		}
		if !isRefByte(c) {
			return false
		}
		prev = c
	}

	// A trailing slash leaves the final segment empty.
	return prev != '/'
}

// isRefByte reports whether c belongs to the reference alphabet.
func isRefByte(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '.' || c == '-'
}
