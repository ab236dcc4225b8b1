package validation

import (
	"errors"
	"testing"
)

func TestIsPathSafe(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"absolute", "/usr/bin/git", true},
		{"relative", "src/main.go", true},
		{"parent relative", "../sibling/file.txt", true},
		{"current dir", ".", true},
		{"windows drive", `C:\Users\dev\repo`, true},
		{"spaces", "/home/dev/My Documents/notes.txt", true},
		{"underscore and dash", "build_output/final-v2.tar", true},
		{"empty", "", false},
		{"semicolon", "/tmp/a;rm -rf /", false},
		{"command substitution", "/tmp/$(id)", false},
		{"backtick", "/tmp/`id`", false},
		{"pipe", "a|b", false},
		{"ampersand", "a&b", false},
		{"output redirect", "out>log", false},
		{"input redirect", "in<log", false},
		{"double quote", `"quoted"`, false},
		{"single quote", "it's", false},
		{"newline", "a\nb", false},
		{"null byte", "a\x00b", false},
		{"tilde expansion", "~/bin", false},
		{"glob", "*.go", false},
		{"question mark", "file?.txt", false},
		{"non-ascii", "/home/dévelopeur", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPathSafe(tt.candidate); got != tt.want {
				t.Errorf("IsPathSafe(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

// The path predicate tolerates traversal forms the ref predicate refuses;
// the two alphabets are not interchangeable.
func TestIsPathSafe_DivergesFromRefs(t *testing.T) {
	for _, candidate := range []string{"../up", "a..b", `C:\tools`, "with space"} {
		if !IsPathSafe(candidate) {
			t.Errorf("IsPathSafe(%q) = false, want true", candidate)
		}
		if IsRefSafe(candidate) {
			t.Errorf("IsRefSafe(%q) = true, want false", candidate)
		}
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"already clean", "/usr/bin/git", "/usr/bin/git", false},
		{"resolves dot segments", "/usr/bin/../sbin/init", "/usr/sbin/init", false},
		{"collapses slashes", "a//b///c", "a/b/c", false},
		{"drops trailing slash", "/tmp/", "/tmp", false},
		{"keeps relative parent", "../x", "../x", false},
		{"strips current dir", "./src/main.go", "src/main.go", false},
		{"empty", "", "", true},
		{"metacharacter", "$(id)", "", true},
		{"glob", "/tmp/*", "", true},
		{"null byte", "/usr/bin/test\x00", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SanitizePath(%q) error = nil, want error", tt.path)
				}
				if !errors.Is(err, ErrPathRejected) {
					t.Errorf("SanitizePath(%q) error = %v, want ErrPathRejected", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizePath(%q) error = %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("SanitizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
