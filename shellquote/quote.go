// Package shellquote escapes single words for shell-like contexts.
//
// This is a fallback layer. The executor never involves a shell, so code
// using it never needs quoting; these helpers exist for the rare caller that
// must hand a value to a shell-interpreting surface anyway (generated
// scripts, remote invocation strings). Quoting is no substitute for
// validating the value first.
package shellquote

import (
	"fmt"
	"runtime"
	"strings"
)

// Convention identifies the quoting rules of a shell family.
type Convention int

const (
	// Posix quotes for POSIX-compatible shells (sh, bash, zsh).
	Posix Convention = iota

	// Windows quotes for the Windows command line.
	Windows
)

// String returns the lowercase name of the convention.
func (c Convention) String() string {
	switch c {
	case Windows:
		return "windows"
	default:
		return "posix"
	}
}

// ParseConvention parses a convention name.
func ParseConvention(name string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "posix":
		return Posix, nil
	case "windows":
		return Windows, nil
	default:
		return Posix, fmt.Errorf("unknown quoting convention %q", name)
	}
}

// hostConvention is selected once from the operating system the process runs
// on, never sniffed per call site.
var hostConvention = conventionForGOOS(runtime.GOOS)

func conventionForGOOS(goos string) Convention {
	if goos == "windows" {
		return Windows
	}
	return Posix
}

// HostConvention returns the quoting convention of the host platform.
func HostConvention() Convention {
	return hostConvention
}

// Quote escapes value as a single word under the host platform's convention.
func Quote(value string) string {
	return QuoteFor(hostConvention, value)
}

// QuoteFor escapes value as a single word under the given convention.
//
// Posix wraps the value in single quotes and rewrites each embedded single
// quote as closing quote, backslash-escaped quote, reopening quote.
// Windows wraps the value in double quotes and prefixes each embedded double
// quote with a backslash. An empty value yields an empty quoted word.
//
// The scope is one word. QuoteFor never assembles command lines, and its
// output is not idempotent: quoting an already-quoted word quotes it again.
// Quote exactly once, at the point the word enters the shell context.
func QuoteFor(c Convention, value string) string {
	if c == Windows {
		return quoteWindows(value)
	}
	return quotePosix(value)
}

func quotePosix(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(value); i++ {
		if value[i] == '\'' {
			b.WriteString(`'\''`)
			continue
		}
		b.WriteByte(value[i])
	}
	b.WriteByte('\'')
	return b.String()
}

func quoteWindows(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		if value[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(value[i])
	}
	b.WriteByte('"')
	return b.String()
}
