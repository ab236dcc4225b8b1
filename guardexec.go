package guardexec

import (
	"context"
	"io"
	"path/filepath"

	"github.com/guardexec/guardexec/executor"
	"github.com/guardexec/guardexec/hooks"
	"github.com/guardexec/guardexec/logging"
	"github.com/guardexec/guardexec/policy"
	"github.com/guardexec/guardexec/shellquote"
	"github.com/guardexec/guardexec/validation"
)

// =============================================================================
// Core Types
// =============================================================================

// Executor is the primary interface for command execution.
// All command execution MUST go through this interface to ensure security
// controls are applied consistently.
type Executor = executor.Executor

// Command represents a command to be executed.
// Use Cmd() to create commands.
type Command = executor.Command

// Result contains the outcome of a successful capturing execution.
type Result = executor.Result

// Builder creates configured Executor instances.
type Builder = executor.Builder

// CommandBuilder creates commands with a fluent interface.
type CommandBuilder = executor.CommandBuilder

// ValidationResult contains the outcome of policy validation.
type ValidationResult = executor.ValidationResult

// Violation represents a policy violation.
type Violation = executor.Violation

// Severity ranks how serious a violation is.
type Severity = executor.Severity

// Severity constants.
const (
	SeverityInfo     = executor.SeverityInfo
	SeverityWarning  = executor.SeverityWarning
	SeverityError    = executor.SeverityError
	SeverityCritical = executor.SeverityCritical
)

// =============================================================================
// Failure Taxonomy
// =============================================================================

// Sentinel errors for the closed failure taxonomy. Match a category with
// errors.Is; extract detail with errors.As on the concrete types.
var (
	// ErrSpawn categorizes failures to start the program at all.
	ErrSpawn = executor.ErrSpawn

	// ErrNonZeroExit categorizes programs that ran and exited non-zero.
	ErrNonZeroExit = executor.ErrNonZeroExit

	// ErrSignaled categorizes programs terminated by a signal.
	ErrSignaled = executor.ErrSignaled

	// ErrPolicyDenied categorizes commands rejected before any process
	// was started.
	ErrPolicyDenied = executor.ErrPolicyDenied

	// ErrInvalidCommand indicates a command that cannot be executed as
	// described.
	ErrInvalidCommand = executor.ErrInvalidCommand

	// ErrProgramRejected indicates a program that failed validation.
	ErrProgramRejected = validation.ErrProgramRejected

	// ErrArgumentRejected indicates an argument that failed validation.
	ErrArgumentRejected = validation.ErrArgumentRejected

	// ErrEnvRejected indicates an environment variable that failed
	// validation.
	ErrEnvRejected = validation.ErrEnvRejected

	// ErrPathRejected indicates a path that failed validation.
	ErrPathRejected = validation.ErrPathRejected
)

// Concrete error types behind the taxonomy.
type (
	// SpawnError reports that the program could not be started.
	SpawnError = executor.SpawnError

	// ExitError reports a non-zero exit, carrying the code and any
	// captured output.
	ExitError = executor.ExitError

	// SignalError reports termination by a signal.
	SignalError = executor.SignalError

	// PolicyViolationError reports a policy denial with its violations.
	PolicyViolationError = executor.PolicyViolationError
)

// Outcome classifies an execution error into a stable label for metrics
// and audit records. A nil error is "success".
func Outcome(err error) string {
	return executor.Outcome(err)
}

// =============================================================================
// Policy Types
// =============================================================================

// PolicyLoader loads and manages policies from YAML files.
type PolicyLoader = policy.Loader

// PolicyConfig represents a loaded policy configuration.
type PolicyConfig = policy.Config

// CompiledPolicy is a compiled and ready-to-use policy.
type CompiledPolicy = policy.CompiledPolicy

// =============================================================================
// Logging
// =============================================================================

// Logger is the leveled logging facade used throughout the library.
type Logger = logging.Logger

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	return logging.GetLogger()
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	logging.SetLogger(l)
}

// =============================================================================
// Factory Functions
// =============================================================================

// New creates a new Executor with default settings: no policy, no
// hooks, parent environment inherited.
//
// For production use, consider NewBuilder to attach a policy, hooks and
// an audit trail, or NewValidated for the built-in validators.
func New() (Executor, error) {
	return executor.NewBuilder().Build()
}

// NewBuilder creates a new executor builder for configuring the Executor.
//
// Example:
//
//	exec, err := guardexec.NewBuilder().
//	    WithPolicy(pol).
//	    WithAuditLogger(recorder).
//	    Build()
func NewBuilder() *Builder {
	return executor.NewBuilder()
}

// NewValidated creates an Executor with the default validation registry
// attached as a before-execute hook: program prefix checks, argument
// pattern checks and environment filtering all run before any spawn.
func NewValidated() (Executor, error) {
	registry := validation.DefaultRegistry()

	h := hooks.NewFuncHook("validation", 10)
	h.Before = registry.ValidateAll

	return executor.NewBuilder().WithHooks(h).Build()
}

// =============================================================================
// Command Construction
// =============================================================================

// Cmd creates a new CommandBuilder for the given program and arguments.
// Call Build() on the returned builder to get the final Command.
//
// Example:
//
//	cmd, err := guardexec.Cmd("/usr/bin/git", "status").Build()
func Cmd(program string, args ...string) *CommandBuilder {
	return executor.NewCommand(program, args...)
}

// MustCmd creates a command and panics on error.
// Use only when the program path is known to be valid.
func MustCmd(program string, args ...string) *Command {
	return executor.NewCommand(program, args...).MustBuild()
}

// =============================================================================
// Policy Loading
// =============================================================================

// LoadPolicy creates a policy loader for a YAML file. basePath is the
// directory reads are confined to; policyFile is relative to it.
//
// Example:
//
//	loader, err := guardexec.LoadPolicy("/etc/guardexec", "policy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pol, err := loader.Load(ctx)
func LoadPolicy(basePath, policyFile string) (*PolicyLoader, error) {
	return policy.NewLoader(basePath, policyFile)
}

// LoadPolicyWithValidation creates a policy loader with custom
// validators.
func LoadPolicyWithValidation(basePath, policyFile string, opts ...policy.LoaderOption) (*PolicyLoader, error) {
	return policy.NewLoader(basePath, policyFile, opts...)
}

// LoadPolicyFromPath creates a policy loader from a full file path.
func LoadPolicyFromPath(path string) (*PolicyLoader, error) {
	dir := filepath.Dir(path)
	file := filepath.Base(path)
	return policy.NewLoader(dir, file)
}

// ExamplePolicy returns an example policy configuration.
// Use this as a starting point for creating your own policies.
func ExamplePolicy() *PolicyConfig {
	return policy.ExamplePolicy()
}

// =============================================================================
// Validation
// =============================================================================

// IsRefSafe reports whether a candidate is safe to pass as a named
// reference argument: branch names, tags, remotes and similar
// identifiers.
func IsRefSafe(candidate string) bool {
	return validation.IsRefSafe(candidate)
}

// IsPathSafe reports whether a candidate is safe to pass as a filesystem
// path argument. The path alphabet is independent of the ref alphabet
// and deliberately wider.
func IsPathSafe(candidate string) bool {
	return validation.IsPathSafe(candidate)
}

// SanitizePath validates a path against the path alphabet and returns
// it in cleaned form. The filesystem is never consulted.
func SanitizePath(path string) (string, error) {
	return validation.SanitizePath(path)
}

// =============================================================================
// Shell Quoting
// =============================================================================

// Convention identifies the quoting rules of a shell family.
type Convention = shellquote.Convention

// Quoting conventions.
const (
	// Posix quotes for POSIX-compatible shells.
	Posix = shellquote.Posix

	// Windows quotes for the Windows command line.
	Windows = shellquote.Windows
)

// Quote escapes value as a single shell word under the host platform's
// convention. This is a fallback layer: commands executed through this
// library never involve a shell and never need quoting.
func Quote(value string) string {
	return shellquote.Quote(value)
}

// QuoteFor escapes value as a single shell word under the given
// convention.
func QuoteFor(c Convention, value string) string {
	return shellquote.QuoteFor(c, value)
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Execute is a convenience function for one-off command execution.
// For repeated executions, create an Executor instance instead.
//
// Example:
//
//	result, err := guardexec.Execute(ctx, "/usr/bin/ls", "-la")
func Execute(ctx context.Context, program string, args ...string) (*Result, error) {
	exec, err := New()
	if err != nil {
		return nil, err
	}

	cmd, err := Cmd(program, args...).Build()
	if err != nil {
		return nil, err
	}

	return exec.Execute(ctx, cmd)
}

// ExecuteInherited is a convenience function running a one-off command
// wired to the parent's standard streams.
func ExecuteInherited(ctx context.Context, program string, args ...string) error {
	exec, err := New()
	if err != nil {
		return err
	}

	cmd, err := Cmd(program, args...).Build()
	if err != nil {
		return err
	}

	return exec.ExecuteInherited(ctx, cmd)
}

// Stream is a convenience function for streaming command output.
//
// Example:
//
//	err := guardexec.Stream(ctx, os.Stdout, os.Stderr, "/usr/bin/tail", "-n", "100", "/var/log/syslog")
func Stream(ctx context.Context, stdout, stderr io.Writer, program string, args ...string) error {
	exec, err := New()
	if err != nil {
		return err
	}

	cmd, err := Cmd(program, args...).Build()
	if err != nil {
		return err
	}

	return exec.Stream(ctx, cmd, stdout, stderr)
}

// =============================================================================
// Version Information
// =============================================================================

// Version returns the library version.
func Version() string {
	return "1.0.0"
}
