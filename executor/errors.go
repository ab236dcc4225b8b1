package executor

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the closed failure taxonomy. Callers match a category
// with errors.Is and extract the concrete type with errors.As. Context
// cancellation is not part of the taxonomy: it surfaces as the caller's own
// ctx.Err().
var (
	// ErrSpawn categorizes failures to start the program at all.
	ErrSpawn = errors.New("spawn failed")

	// ErrNonZeroExit categorizes programs that ran and exited non-zero.
	ErrNonZeroExit = errors.New("non-zero exit")

	// ErrSignaled categorizes programs terminated by a signal.
	ErrSignaled = errors.New("terminated by signal")

	// ErrPolicyDenied categorizes commands rejected by policy before any
	// process was started.
	ErrPolicyDenied = errors.New("denied by policy")

	// ErrInvalidCommand is returned for commands that cannot be executed as
	// described, such as an empty program name.
	ErrInvalidCommand = errors.New("invalid command")
)

// SpawnError reports that the program could not be started: not found, not
// executable, or the fork/exec itself failed. The child never ran, so there
// is no exit code and no output.
type SpawnError struct {
	Program string
	Err     error
}

// NewSpawnError creates a SpawnError wrapping the underlying OS error.
func NewSpawnError(program string, err error) *SpawnError {
	return &SpawnError{Program: program, Err: err}
}

// Error returns the error message.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn failed: %s: %v", e.Program, e.Err)
}

// Unwrap returns the underlying OS error.
func (e *SpawnError) Unwrap() error { return e.Err }

// Is matches the ErrSpawn category.
func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// ExitError reports that the program ran to completion and exited with a
// non-zero code. Stdout and Stderr carry the captured output when the
// invocation was capturing; inherited and streaming modes leave them nil
// because the bytes already went to the caller's streams.
type ExitError struct {
	Program string
	Stdout  []byte
	Stderr  []byte
	Code    int
}

// NewExitError creates an ExitError for the given exit code.
func NewExitError(program string, code int, stdout, stderr []byte) *ExitError {
	return &ExitError{Program: program, Code: code, Stdout: stdout, Stderr: stderr}
}

// Error returns the error message. Captured output stays on the fields.
func (e *ExitError) Error() string {
	return fmt.Sprintf("non-zero exit: %s: exit code %d", e.Program, e.Code)
}

// Is matches the ErrNonZeroExit category.
func (e *ExitError) Is(target error) bool { return target == ErrNonZeroExit }

// SignalError reports that the program was terminated by a signal before it
// could exit on its own.
type SignalError struct {
	Program string
	Signal  string
}

// NewSignalError creates a SignalError for the named signal.
func NewSignalError(program, signal string) *SignalError {
	return &SignalError{Program: program, Signal: signal}
}

// Error returns the error message.
func (e *SignalError) Error() string {
	return fmt.Sprintf("terminated by signal: %s: %s", e.Program, e.Signal)
}

// Is matches the ErrSignaled category.
func (e *SignalError) Is(target error) bool { return target == ErrSignaled }

// Severity ranks how serious a policy violation is.
type Severity int

const (
	// SeverityInfo is informational.
	SeverityInfo Severity = iota

	// SeverityWarning is a suspicious but tolerable condition.
	SeverityWarning

	// SeverityError is a clear policy breach that blocks execution.
	SeverityError

	// SeverityCritical is a likely injection attempt.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Violation describes a specific way a command fell outside policy.
// Messages reference fields and positions, never raw argument content.
type Violation struct {
	// Code identifies the rule that fired, e.g. "program_not_listed".
	Code string

	// Field names the offending part of the command, e.g. "args[2]".
	Field string

	// Message describes the violation.
	Message string

	// Severity ranks the violation.
	Severity Severity
}

// PolicyViolationError reports that policy rejected the command. Nothing
// was spawned.
type PolicyViolationError struct {
	Program    string
	Violations []Violation
}

// NewPolicyViolationError creates a PolicyViolationError.
func NewPolicyViolationError(program string, violations []Violation) *PolicyViolationError {
	return &PolicyViolationError{Program: program, Violations: violations}
}

// Error returns the error message.
func (e *PolicyViolationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("denied by policy: %s: %s", e.Program, e.Violations[0].Message)
	}
	return fmt.Sprintf("denied by policy: %s: %d violations", e.Program, len(e.Violations))
}

// Is matches the ErrPolicyDenied category.
func (e *PolicyViolationError) Is(target error) bool { return target == ErrPolicyDenied }

// Outcome classifies an execution error into a stable label for metrics and
// audit records. A nil error is "success".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrPolicyDenied):
		return "policy_denied"
	case errors.Is(err, ErrSpawn):
		return "spawn_failed"
	case errors.Is(err, ErrNonZeroExit):
		return "non_zero_exit"
	case errors.Is(err, ErrSignaled):
		return "signaled"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
