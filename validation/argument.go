package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/guardexec/guardexec/executor"
)

// ArgumentValidatorConfig configures the argument validator.
type ArgumentValidatorConfig struct {
	DeniedPatterns      []string
	MaxArgs             int
	MaxArgLength        int
	AllowShellMetachars bool
}

// ArgumentValidator screens command arguments. Rejections name the
// argument's position, never its content.
type ArgumentValidator struct {
	config         *ArgumentValidatorConfig
	shellMetachars string
	deniedRegexps  []*regexp.Regexp
}

// NewArgumentValidator creates a new argument validator. A nil config
// applies defaults that reject shell metacharacters and the option forms
// version-control tools use to run arbitrary programs.
func NewArgumentValidator(config *ArgumentValidatorConfig) *ArgumentValidator {
	if config == nil {
		config = &ArgumentValidatorConfig{
			MaxArgs:      100,
			MaxArgLength: 4096,
			DeniedPatterns: []string{
				`^\s*;\s*`,           // Command injection via semicolon
				`\|\s*`,              // Pipe injection
				`&\s*`,               // Background/AND injection
				`\$\(`,               // Command substitution
				"\\`",                // Backtick substitution
				`>\s*`,               // Redirect output
				`<\s*`,               // Redirect input
				`\$\{`,               // Variable expansion
				`\n`,                 // Newline injection
				`\r`,                 // Carriage return injection
				`--exec\s*=`,         // Git exec injection
				`--upload-pack\s*=`,  // Git upload-pack injection
				`--receive-pack\s*=`, // Git receive-pack injection
			},
			AllowShellMetachars: false,
		}
	}

	v := &ArgumentValidator{
		config:         config,
		shellMetachars: ";|&$`'\"\\<>(){}[]!#~*?",
	}

	// Compile denied patterns
	for _, pattern := range config.DeniedPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			v.deniedRegexps = append(v.deniedRegexps, re)
		}
	}

	return v
}

// Name returns the validator name.
func (v *ArgumentValidator) Name() string {
	return "argument_validator"
}

// Priority returns the execution priority.
func (v *ArgumentValidator) Priority() int {
	return 20
}

// Validate screens command arguments.
func (v *ArgumentValidator) Validate(ctx context.Context, cmd *executor.Command) error {
	// Check argument count
	if len(cmd.Args) > v.config.MaxArgs {
		return fmt.Errorf("%w: too many arguments (%d > %d)",
			ErrArgumentRejected, len(cmd.Args), v.config.MaxArgs)
	}

	// Validate each argument
	for i, arg := range cmd.Args {
		if err := v.validateArgument(arg, i); err != nil {
			return err
		}
	}

	return nil
}

// validateArgument screens a single argument.
func (v *ArgumentValidator) validateArgument(arg string, position int) error {
	// Check length
	if len(arg) > v.config.MaxArgLength {
		return fmt.Errorf("%w: argument %d too long (%d > %d)",
			ErrArgumentRejected, position, len(arg), v.config.MaxArgLength)
	}

	// Check for null bytes
	if strings.ContainsRune(arg, 0) {
		return fmt.Errorf("%w: argument %d contains null byte",
			ErrArgumentRejected, position)
	}

	// Check denied patterns
	for _, re := range v.deniedRegexps {
		if re.MatchString(arg) {
			return fmt.Errorf("%w: argument %d matches denied pattern",
				ErrArgumentRejected, position)
		}
	}

	// Check shell metacharacters if not allowed
	if !v.config.AllowShellMetachars {
		for _, char := range v.shellMetachars {
			if strings.ContainsRune(arg, char) {
				return fmt.Errorf("%w: argument %d contains shell metacharacter '%c'",
					ErrArgumentRejected, position, char)
			}
		}
	}

	return nil
}

// SanitizeArgument strips null bytes and control characters from an
// argument. Tabs survive; everything else below 0x20 is dropped.
func SanitizeArgument(arg string) string {
	arg = strings.ReplaceAll(arg, "\x00", "")

	var result strings.Builder
	for _, r := range arg {
		if r >= 32 || r == '\t' {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// ArgPattern defines a pattern for argument matching.
type ArgPattern struct {
	compiled    *regexp.Regexp
	Pattern     string
	Description string
	Position    int
	Required    bool
}

// Compile compiles the argument pattern.
func (p *ArgPattern) Compile() error {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", p.Pattern, err)
	}
	p.compiled = re
	return nil
}

// Matches reports whether the argument at the given position satisfies
// this pattern. A negative Position applies the pattern at any position.
func (p *ArgPattern) Matches(arg string, position int) bool {
	if p.compiled == nil {
		return false
	}

	if p.Position >= 0 && p.Position != position {
		return false
	}

	return p.compiled.MatchString(arg)
}

// ArgumentMatcher matches arguments against allowed patterns.
type ArgumentMatcher struct {
	patterns []*ArgPattern
}

// NewArgumentMatcher creates a new argument matcher.
func NewArgumentMatcher(patterns []*ArgPattern) (*ArgumentMatcher, error) {
	m := &ArgumentMatcher{
		patterns: make([]*ArgPattern, len(patterns)),
	}

	for i, p := range patterns {
		// Make a copy
		pattern := *p
		if err := pattern.Compile(); err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		m.patterns[i] = &pattern
	}

	return m, nil
}

// MatchAll checks whether every argument matches an allowed pattern and
// every required pattern is satisfied. Reasons name positions and pattern
// descriptions, never argument content.
func (m *ArgumentMatcher) MatchAll(args []string) (matched bool, reason string) {
	for i := range args {
		argMatched := false
		for _, p := range m.patterns {
			if p.Matches(args[i], i) {
				argMatched = true
				break
			}
		}
		if !argMatched {
			return false, fmt.Sprintf("argument %d does not match any allowed pattern", i)
		}
	}

	// Check required patterns
	for _, p := range m.patterns {
		if p.Required {
			found := false
			for i, arg := range args {
				if p.Matches(arg, i) {
					found = true
					break
				}
			}
			if !found {
				return false, fmt.Sprintf("required pattern %q not satisfied", p.Description)
			}
		}
	}

	return true, ""
}
