// Package policy provides YAML-based policy-as-code for command
// execution: per-program allow-lists over arguments, environment
// variables, and working directories.
package policy

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guardexec/guardexec/executor"
)

// ArgPattern defines a pattern for argument matching.
type ArgPattern struct {
	// Pattern is the regex pattern.
	Pattern string `yaml:"pattern"`

	// Position is the argument index this pattern applies to
	// (-1 for any).
	Position int `yaml:"position"`

	// Description describes what this pattern allows.
	Description string `yaml:"description"`

	// Required indicates the pattern must be satisfied by some
	// argument.
	Required bool `yaml:"required"`
}

// UnmarshalYAML decodes a pattern with Position defaulting to -1, so an
// omitted position means "any position" rather than anchoring at 0.
func (p *ArgPattern) UnmarshalYAML(value *yaml.Node) error {
	type plain ArgPattern
	decoded := plain{Position: -1}
	if err := value.Decode(&decoded); err != nil {
		return err
	}
	*p = ArgPattern(decoded)
	return nil
}

// ProgramPolicy holds the compiled rules for one program.
type ProgramPolicy struct {
	// Name is the program this entry governs, matched verbatim
	// against Command.Program.
	Name string

	// Enabled indicates if this program may run.
	Enabled bool

	// AllowedArgs are patterns for allowed arguments.
	AllowedArgs []ArgPattern

	// DeniedArgs are patterns for denied arguments.
	DeniedArgs []ArgPattern

	// AllowedEnv are environment variables allowed for this program.
	// Overrides the global allowlist when non-empty.
	AllowedEnv []string

	// DeniedEnv are environment variables denied for this program,
	// in addition to the global denials.
	DeniedEnv []string

	// AllowedWorkdirs are allowed working directories (wildcards).
	AllowedWorkdirs []string

	// RequireAudit indicates executions must be audit-logged.
	RequireAudit bool

	// compiledAllowed are compiled allowed arg patterns, parallel to
	// AllowedArgs.
	compiledAllowed []*regexp.Regexp

	// compiledDenied are compiled denied arg patterns, parallel to
	// DeniedArgs.
	compiledDenied []*regexp.Regexp
}

// CompiledPolicy is a validated, optimized policy ready for use. It
// implements the executor's Policy interface.
type CompiledPolicy struct {
	raw              *Config
	version          string
	hash             string
	programIndex     map[string]*ProgramPolicy
	globalAllowedEnv []string
	globalDeniedEnv  []string
	loadedAt         time.Time
	mu               sync.RWMutex
}

// NewCompiledPolicy creates a new compiled policy from configuration.
func NewCompiledPolicy(config *Config) (*CompiledPolicy, error) {
	cp := &CompiledPolicy{
		raw:              config,
		version:          config.Version,
		programIndex:     make(map[string]*ProgramPolicy),
		globalAllowedEnv: config.Global.AllowedEnv,
		globalDeniedEnv:  config.Global.DeniedEnv,
		loadedAt:         time.Now(),
	}

	// Build program index
	for i := range config.Programs {
		pc := &config.Programs[i]
		pp := &ProgramPolicy{
			Name:            pc.Name,
			Enabled:         pc.Enabled,
			AllowedArgs:     pc.AllowedArgs,
			DeniedArgs:      pc.DeniedArgs,
			AllowedEnv:      pc.AllowedEnv,
			DeniedEnv:       pc.DeniedEnv,
			AllowedWorkdirs: pc.AllowedWorkdirs,
			RequireAudit:    pc.RequireAudit,
		}

		if err := pp.compile(); err != nil {
			return nil, fmt.Errorf("compiling policy for %s: %w", pc.Name, err)
		}

		cp.programIndex[pc.Name] = pp
	}

	return cp, nil
}

// compile compiles the regex patterns.
func (pp *ProgramPolicy) compile() error {
	for _, ap := range pp.AllowedArgs {
		re, err := regexp.Compile(ap.Pattern)
		if err != nil {
			return fmt.Errorf("invalid allowed pattern %q: %w", ap.Pattern, err)
		}
		pp.compiledAllowed = append(pp.compiledAllowed, re)
	}

	for _, dp := range pp.DeniedArgs {
		re, err := regexp.Compile(dp.Pattern)
		if err != nil {
			return fmt.Errorf("invalid denied pattern %q: %w", dp.Pattern, err)
		}
		pp.compiledDenied = append(pp.compiledDenied, re)
	}

	return nil
}

// Validate checks a command against the policy. Violation messages name
// positions and variable keys, never argument content.
func (cp *CompiledPolicy) Validate(ctx context.Context, cmd *executor.Command) (*executor.ValidationResult, error) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	result := &executor.ValidationResult{Allowed: true}

	pp, ok := cp.programIndex[cmd.Program]
	if !ok {
		result.Allowed = false
		result.Reason = "program not listed in policy"
		result.Violations = append(result.Violations, executor.Violation{
			Code:     "program_not_listed",
			Field:    "program",
			Message:  fmt.Sprintf("program %s is not in the policy", cmd.Program),
			Severity: executor.SeverityError,
		})
		return result, nil
	}

	if !pp.Enabled {
		result.Allowed = false
		result.Reason = "program disabled"
		result.Violations = append(result.Violations, executor.Violation{
			Code:     "program_disabled",
			Field:    "program",
			Message:  fmt.Sprintf("program %s is disabled in the policy", cmd.Program),
			Severity: executor.SeverityError,
		})
		return result, nil
	}

	if violations := pp.validateArgs(cmd.Args); len(violations) > 0 {
		result.Allowed = false
		result.Reason = "argument validation failed"
		result.Violations = append(result.Violations, violations...)
	}

	if violations := cp.validateEnv(pp, cmd.Env); len(violations) > 0 {
		result.Allowed = false
		result.Reason = "environment validation failed"
		result.Violations = append(result.Violations, violations...)
	}

	if cmd.WorkingDir != "" && len(pp.AllowedWorkdirs) > 0 {
		if violations := pp.validateWorkdir(cmd.WorkingDir); len(violations) > 0 {
			result.Allowed = false
			result.Reason = "working directory not allowed"
			result.Violations = append(result.Violations, violations...)
		}
	}

	return result, nil
}

// validateArgs validates arguments against the policy.
func (pp *ProgramPolicy) validateArgs(args []string) []executor.Violation {
	var violations []executor.Violation

	for i, arg := range args {
		// Check denied patterns first
		for j, re := range pp.compiledDenied {
			p := pp.DeniedArgs[j]
			if p.Position >= 0 && p.Position != i {
				continue
			}
			if re.MatchString(arg) {
				violations = append(violations, executor.Violation{
					Code:     "argument_denied",
					Field:    fmt.Sprintf("args[%d]", i),
					Message:  fmt.Sprintf("argument %d matches denied pattern: %s", i, p.Description),
					Severity: executor.SeverityError,
				})
			}
		}

		// Check if matches any allowed pattern
		if len(pp.compiledAllowed) > 0 {
			matched := false
			for j, re := range pp.compiledAllowed {
				p := pp.AllowedArgs[j]
				if p.Position >= 0 && p.Position != i {
					continue
				}
				if re.MatchString(arg) {
					matched = true
					break
				}
			}
			if !matched {
				violations = append(violations, executor.Violation{
					Code:     "argument_unmatched",
					Field:    fmt.Sprintf("args[%d]", i),
					Message:  fmt.Sprintf("argument %d does not match any allowed pattern", i),
					Severity: executor.SeverityError,
				})
			}
		}
	}

	// Required patterns must be satisfied by some argument.
	for j, p := range pp.AllowedArgs {
		if !p.Required {
			continue
		}
		found := false
		for i, arg := range args {
			if p.Position >= 0 && p.Position != i {
				continue
			}
			if pp.compiledAllowed[j].MatchString(arg) {
				found = true
				break
			}
		}
		if !found {
			violations = append(violations, executor.Violation{
				Code:     "argument_missing",
				Field:    "args",
				Message:  fmt.Sprintf("required pattern not satisfied: %s", p.Description),
				Severity: executor.SeverityError,
			})
		}
	}

	return violations
}

// validateEnv validates environment overrides against the program entry
// and the global lists. Denials are the union of both lists; a
// per-program allowlist overrides the global one.
func (cp *CompiledPolicy) validateEnv(pp *ProgramPolicy, env map[string]string) []executor.Violation {
	var violations []executor.Violation

	allowList := pp.AllowedEnv
	if len(allowList) == 0 {
		allowList = cp.globalAllowedEnv
	}

	for key := range env {
		denied := false
		for _, pattern := range pp.DeniedEnv {
			if matchesWildcard(key, pattern) {
				denied = true
				break
			}
		}
		if !denied {
			for _, pattern := range cp.globalDeniedEnv {
				if matchesWildcard(key, pattern) {
					denied = true
					break
				}
			}
		}
		if denied {
			violations = append(violations, executor.Violation{
				Code:     "env_denied",
				Field:    fmt.Sprintf("env[%s]", key),
				Message:  fmt.Sprintf("environment variable %s is denied", key),
				Severity: executor.SeverityError,
			})
			continue
		}

		if len(allowList) > 0 {
			allowed := false
			for _, pattern := range allowList {
				if matchesWildcard(key, pattern) {
					allowed = true
					break
				}
			}
			if !allowed {
				violations = append(violations, executor.Violation{
					Code:     "env_not_listed",
					Field:    fmt.Sprintf("env[%s]", key),
					Message:  fmt.Sprintf("environment variable %s is not in the allowlist", key),
					Severity: executor.SeverityError,
				})
			}
		}
	}

	return violations
}

// validateWorkdir validates the working directory against allowed
// patterns.
func (pp *ProgramPolicy) validateWorkdir(workdir string) []executor.Violation {
	for _, pattern := range pp.AllowedWorkdirs {
		if matchesWildcard(workdir, pattern) {
			return nil
		}
	}

	return []executor.Violation{{
		Code:     "workdir_not_allowed",
		Field:    "workdir",
		Message:  fmt.Sprintf("working directory %s is not allowed", workdir),
		Severity: executor.SeverityError,
	}}
}

// GetProgramPolicy returns the entry for a program.
func (cp *CompiledPolicy) GetProgramPolicy(program string) (*ProgramPolicy, error) {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	pp, ok := cp.programIndex[program]
	if !ok {
		return nil, fmt.Errorf("no policy for program %s", program)
	}
	return pp, nil
}

// RequiresAudit reports whether the policy demands audit logging for the
// program. Unlisted programs report false; they are denied outright by
// Validate.
func (cp *CompiledPolicy) RequiresAudit(program string) bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	pp, ok := cp.programIndex[program]
	return ok && pp.RequireAudit
}

// Version returns the policy version for audit purposes.
func (cp *CompiledPolicy) Version() string {
	return cp.version
}

// Hash returns the content hash of the loaded policy document, or the
// empty string for policies not created by a loader.
func (cp *CompiledPolicy) Hash() string {
	return cp.hash
}

// matchesWildcard checks if a string matches a wildcard pattern.
func matchesWildcard(s, pattern string) bool {
	// Simple wildcard matching: * matches any sequence
	if pattern == "*" {
		return true
	}

	// Convert to regex
	escaped := regexp.QuoteMeta(pattern)
	escaped = "^" + escaped + "$"
	// Replace \* with .*
	escaped = regexp.MustCompile(`\\\*`).ReplaceAllString(escaped, ".*")

	re, err := regexp.Compile(escaped)
	if err != nil {
		return false
	}

	return re.MatchString(s)
}

// PermissivePolicy returns a policy that allows everything.
// Only suitable for tests and development.
func PermissivePolicy() executor.Policy {
	return &permissivePolicy{}
}

type permissivePolicy struct{}

func (p *permissivePolicy) Validate(ctx context.Context, cmd *executor.Command) (*executor.ValidationResult, error) {
	return &executor.ValidationResult{Allowed: true}, nil
}
