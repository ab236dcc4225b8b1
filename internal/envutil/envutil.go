// Package envutil builds child-process environments.
//
// The spawn layer hands os/exec a []string in KEY=value form, so the helpers
// here work on that representation directly. Merge keeps the base slice
// order stable, which keeps child environments reproducible across runs.
package envutil

import (
	"sort"
	"strings"
)

// Minimal returns a scrubbed baseline environment: an executable search
// path, a locale and a writable home, nothing else.
func Minimal() []string {
	return []string{
		"PATH=/usr/bin:/bin",
		"LANG=C.UTF-8",
		"LC_ALL=C.UTF-8",
		"HOME=/tmp",
		"USER=nobody",
	}
}

// Merge applies overrides to a base environment. Keys already present in
// base are rewritten in place, preserving their position; new keys are
// appended in sorted order so the result is deterministic.
func Merge(base []string, overrides map[string]string) []string {
	result := make([]string, 0, len(base)+len(overrides))
	applied := make(map[string]bool, len(overrides))

	for _, entry := range base {
		key := entryKey(entry)
		if value, ok := overrides[key]; ok && key != "" {
			result = append(result, key+"="+value)
			applied[key] = true
			continue
		}
		result = append(result, entry)
	}

	remaining := make([]string, 0, len(overrides))
	for key := range overrides {
		if !applied[key] {
			remaining = append(remaining, key)
		}
	}
	sort.Strings(remaining)
	for _, key := range remaining {
		result = append(result, key+"="+overrides[key])
	}

	return result
}

// Lookup finds a key in a KEY=value environment slice. When the key appears
// more than once the last entry wins, matching how os/exec resolves
// duplicates.
func Lookup(env []string, key string) (string, bool) {
	value, found := "", false
	for _, entry := range env {
		idx := strings.IndexByte(entry, '=')
		if idx < 0 {
			continue
		}
		if entry[:idx] == key {
			value = entry[idx+1:]
			found = true
		}
	}
	return value, found
}

func entryKey(entry string) string {
	if idx := strings.IndexByte(entry, '='); idx >= 0 {
		return entry[:idx]
	}
	return entry
}
