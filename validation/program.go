package validation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/guardexec/guardexec/executor"
)

// ProgramValidatorConfig configures the program validator.
type ProgramValidatorConfig struct {
	// AllowedPrefixes restrict absolute programs to these directory
	// prefixes. Empty means any prefix.
	AllowedPrefixes []string

	// DeniedPrefixes reject absolute programs under these prefixes.
	DeniedPrefixes []string

	// AllowBareNames accepts programs without a path separator, to be
	// resolved through PATH at spawn time.
	AllowBareNames bool

	// AllowRelativeWorkDir accepts relative working directories.
	AllowRelativeWorkDir bool
}

// ProgramValidator screens Command.Program and Command.WorkingDir with
// pure string checks. It never consults the filesystem: a pass here is a
// statement about the text, not about what exists on disk.
type ProgramValidator struct {
	config *ProgramValidatorConfig
}

// NewProgramValidator creates a program validator. A nil config applies
// the defaults: bare names allowed, absolute paths restricted to the
// usual system binary directories.
func NewProgramValidator(config *ProgramValidatorConfig) *ProgramValidator {
	if config == nil {
		config = &ProgramValidatorConfig{
			AllowedPrefixes: []string{
				"/usr/bin",
				"/usr/local/bin",
				"/bin",
				"/sbin",
			},
			DeniedPrefixes: []string{
				"/etc",
				"/root",
				"/proc",
				"/sys",
			},
			AllowBareNames:       true,
			AllowRelativeWorkDir: false,
		}
	}
	return &ProgramValidator{config: config}
}

// Name returns the validator name.
func (v *ProgramValidator) Name() string {
	return "program_validator"
}

// Priority returns the execution priority.
func (v *ProgramValidator) Priority() int {
	return 10
}

// Validate screens the command's program and working directory.
func (v *ProgramValidator) Validate(ctx context.Context, cmd *executor.Command) error {
	if err := v.validateProgram(cmd.Program); err != nil {
		return fmt.Errorf("program: %w", err)
	}

	if cmd.WorkingDir != "" {
		if err := v.validateWorkingDir(cmd.WorkingDir); err != nil {
			return fmt.Errorf("working directory: %w", err)
		}
	}

	return nil
}

// validateProgram screens the program itself.
func (v *ProgramValidator) validateProgram(program string) error {
	if program == "" {
		return fmt.Errorf("%w: program is required", ErrProgramRejected)
	}

	// Bare names resolve through PATH; they must be a single safe segment.
	if !strings.ContainsAny(program, "/\\") {
		if !v.config.AllowBareNames {
			return fmt.Errorf("%w: bare names are not allowed", ErrProgramRejected)
		}
		if program[0] == '-' || program == "." || program == ".." || !isProgramName(program) {
			return fmt.Errorf("%w: not a plain program name", ErrProgramRejected)
		}
		return nil
	}

	if !filepath.IsAbs(program) {
		return fmt.Errorf("%w: path form must be absolute", ErrProgramRejected)
	}

	if !IsPathSafe(program) {
		return fmt.Errorf("%w: character outside the path alphabet", ErrProgramRejected)
	}

	// Clean before the prefix checks so "/usr/bin/../../etc/passwd"
	// is judged by where it actually lands.
	cleaned := filepath.Clean(program)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("%w: path traversal", ErrProgramRejected)
	}

	if len(v.config.AllowedPrefixes) > 0 {
		allowed := false
		for _, prefix := range v.config.AllowedPrefixes {
			if strings.HasPrefix(cleaned, prefix) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: path not under an allowed prefix", ErrProgramRejected)
		}
	}

	for _, prefix := range v.config.DeniedPrefixes {
		if strings.HasPrefix(cleaned, prefix) {
			return fmt.Errorf("%w: path under denied prefix %s", ErrProgramRejected, prefix)
		}
	}

	return nil
}

// validateWorkingDir screens the working directory.
func (v *ProgramValidator) validateWorkingDir(dir string) error {
	if !v.config.AllowRelativeWorkDir && !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: must be absolute", ErrProgramRejected)
	}

	if !IsPathSafe(dir) {
		return fmt.Errorf("%w: character outside the path alphabet", ErrProgramRejected)
	}

	if strings.Contains(filepath.Clean(dir), "..") {
		return fmt.Errorf("%w: path traversal", ErrProgramRejected)
	}

	return nil
}

// isProgramName reports whether name is a single path segment made of
// letters, digits, '.', '_' and '-'.
func isProgramName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '.' || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}
