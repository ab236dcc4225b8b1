package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/guardexec/guardexec/executor"
)

// EnvironmentValidatorConfig configures the environment validator.
type EnvironmentValidatorConfig struct {
	// AllowedVars are environment variables that are allowed.
	// Supports wildcards: "PATH", "LC_*", etc.
	AllowedVars []string

	// DeniedVars are environment variables that are denied.
	// Supports wildcards: "*_SECRET", "*_PASSWORD", etc.
	DeniedVars []string

	// MaxVars is the maximum number of environment variables.
	MaxVars int

	// MaxKeyLength is the maximum length of a variable name.
	MaxKeyLength int

	// MaxValueLength is the maximum length of a variable value.
	MaxValueLength int

	// AllowEmpty allows empty values.
	AllowEmpty bool
}

// EnvironmentValidator screens environment variable overrides. Rejections
// name the offending key, never its value.
type EnvironmentValidator struct {
	config        *EnvironmentValidatorConfig
	allowedRegexp []*regexp.Regexp
	deniedRegexp  []*regexp.Regexp
}

// NewEnvironmentValidator creates a new environment validator. A nil
// config applies defaults that pass common locale and terminal variables
// and refuse credentials, cloud tooling, and loader overrides.
func NewEnvironmentValidator(config *EnvironmentValidatorConfig) *EnvironmentValidator {
	if config == nil {
		config = &EnvironmentValidatorConfig{
			AllowedVars: []string{
				"PATH",
				"HOME",
				"USER",
				"LANG",
				"LC_*",
				"TZ",
				"TERM",
				"SHELL",
			},
			DeniedVars: []string{
				"*_SECRET*",
				"*_PASSWORD*",
				"*_TOKEN*",
				"*_KEY*",
				"*_CREDENTIAL*",
				"AWS_*",
				"GITHUB_*",
				"DOCKER_*",
				"SSH_*",
				"GPG_*",
				"LD_PRELOAD",
				"LD_LIBRARY_PATH",
				"DYLD_*",
			},
			MaxVars:        50,
			MaxKeyLength:   256,
			MaxValueLength: 8192,
			AllowEmpty:     false,
		}
	}

	v := &EnvironmentValidator{
		config: config,
	}

	// Compile allowed patterns
	for _, pattern := range config.AllowedVars {
		if re := wildcardToRegexp(pattern); re != nil {
			v.allowedRegexp = append(v.allowedRegexp, re)
		}
	}

	// Compile denied patterns
	for _, pattern := range config.DeniedVars {
		if re := wildcardToRegexp(pattern); re != nil {
			v.deniedRegexp = append(v.deniedRegexp, re)
		}
	}

	return v
}

// Name returns the validator name.
func (v *EnvironmentValidator) Name() string {
	return "environment_validator"
}

// Priority returns the execution priority.
func (v *EnvironmentValidator) Priority() int {
	return 30
}

// Validate screens the command's environment overrides.
func (v *EnvironmentValidator) Validate(ctx context.Context, cmd *executor.Command) error {
	// Check count
	if len(cmd.Env) > v.config.MaxVars {
		return fmt.Errorf("%w: too many environment variables (%d > %d)",
			ErrEnvRejected, len(cmd.Env), v.config.MaxVars)
	}

	// Validate each variable
	for key, value := range cmd.Env {
		if err := v.validateVar(key, value); err != nil {
			return err
		}
	}

	return nil
}

// validateVar screens a single environment variable.
func (v *EnvironmentValidator) validateVar(key, value string) error {
	// Check key length
	if len(key) > v.config.MaxKeyLength {
		return fmt.Errorf("%w: key too long (%d > %d)",
			ErrEnvRejected, len(key), v.config.MaxKeyLength)
	}

	// Check value length
	if len(value) > v.config.MaxValueLength {
		return fmt.Errorf("%w: value for %q too long (%d > %d)",
			ErrEnvRejected, key, len(value), v.config.MaxValueLength)
	}

	// Check empty value
	if !v.config.AllowEmpty && value == "" {
		return fmt.Errorf("%w: empty value for %q", ErrEnvRejected, key)
	}

	// Check key format (must be valid identifier)
	if !isValidEnvKey(key) {
		return fmt.Errorf("%w: invalid key %q", ErrEnvRejected, key)
	}

	// Check against denied patterns first
	for _, re := range v.deniedRegexp {
		if re.MatchString(key) {
			return fmt.Errorf("%w: variable %q matches denied pattern", ErrEnvRejected, key)
		}
	}

	// Check against allowed patterns
	if len(v.allowedRegexp) > 0 {
		allowed := false
		for _, re := range v.allowedRegexp {
			if re.MatchString(key) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: variable %q not in allowlist", ErrEnvRejected, key)
		}
	}

	// Null bytes cannot survive into the child environment.
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%w: value for %q contains null byte", ErrEnvRejected, key)
	}

	return nil
}

// wildcardToRegexp converts a wildcard pattern to a regexp.
func wildcardToRegexp(pattern string) *regexp.Regexp {
	// Escape special characters except *
	escaped := regexp.QuoteMeta(pattern)
	// Replace \* with .* for wildcard matching
	escaped = strings.ReplaceAll(escaped, "\\*", ".*")
	// Anchor the pattern
	escaped = "^" + escaped + "$"

	re, err := regexp.Compile(escaped)
	if err != nil {
		return nil
	}
	return re
}

// isValidEnvKey checks if a key is a valid environment variable name.
func isValidEnvKey(key string) bool {
	if len(key) == 0 {
		return false
	}

	// Must start with letter or underscore
	first := key[0]
	if !((first >= 'a' && first <= 'z') ||
		(first >= 'A' && first <= 'Z') ||
		first == '_') {
		return false
	}

	// Rest must be alphanumeric or underscore
	for i := 1; i < len(key); i++ {
		c := key[i]
		if !((c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '_') {
			return false
		}
	}

	return true
}

// FilterEnvironment filters environment variables through an allowlist
// and a denylist, both supporting wildcards. Deny wins over allow; an
// empty allowlist passes everything not denied.
func FilterEnvironment(env map[string]string, allowed, denied []string) map[string]string {
	result := make(map[string]string)

	// Compile patterns
	var allowedRe, deniedRe []*regexp.Regexp
	for _, p := range allowed {
		if re := wildcardToRegexp(p); re != nil {
			allowedRe = append(allowedRe, re)
		}
	}
	for _, p := range denied {
		if re := wildcardToRegexp(p); re != nil {
			deniedRe = append(deniedRe, re)
		}
	}

	for key, value := range env {
		// Check denied first
		isDenied := false
		for _, re := range deniedRe {
			if re.MatchString(key) {
				isDenied = true
				break
			}
		}
		if isDenied {
			continue
		}

		// Check allowed
		if len(allowedRe) > 0 {
			isAllowed := false
			for _, re := range allowedRe {
				if re.MatchString(key) {
					isAllowed = true
					break
				}
			}
			if !isAllowed {
				continue
			}
		}

		result[key] = value
	}

	return result
}
