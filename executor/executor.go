package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/guardexec/guardexec/internal/envutil"
	internalexec "github.com/guardexec/guardexec/internal/exec"
	"github.com/guardexec/guardexec/logging"
)

// Executor is the single abstraction for process invocation. All command
// execution MUST go through this interface; nothing else in the module
// spawns processes.
type Executor interface {
	// Execute runs a command and captures its output. The returned Result
	// exists only when the child exited with status 0; every other outcome
	// is reported through the failure taxonomy.
	Execute(ctx context.Context, cmd *Command) (*Result, error)

	// ExecuteInherited runs a command with the child's standard streams
	// connected to the parent's. The failure taxonomy is the same; an
	// ExitError from this mode carries no captured output.
	ExecuteInherited(ctx context.Context, cmd *Command) error

	// Stream runs a command with stdout and stderr routed to the given
	// writers.
	Stream(ctx context.Context, cmd *Command, stdout, stderr io.Writer) error
}

// Policy decides whether a command may run. Implementations must be safe
// for concurrent use.
type Policy interface {
	// Validate checks a command against the policy.
	Validate(ctx context.Context, cmd *Command) (*ValidationResult, error)
}

// ValidationResult is the outcome of policy validation.
type ValidationResult struct {
	Reason     string
	Violations []Violation
	Allowed    bool
}

// Hook observes command execution. BeforeExecute may veto; AfterExecute is
// an observer and cannot change the outcome.
type Hook interface {
	// BeforeExecute runs before the spawn. Returning an error aborts the
	// execution.
	BeforeExecute(ctx context.Context, cmd *Command) error

	// AfterExecute runs once the outcome is known. result is nil unless
	// the child exited with status 0.
	AfterExecute(ctx context.Context, cmd *Command, result *Result, execErr error)
}

// Telemetry records spans and measurements for executor operations.
type Telemetry interface {
	// StartSpan starts a trace span and returns a function that ends it.
	StartSpan(ctx context.Context, name string) (context.Context, func())

	// RecordDuration records a duration measurement in seconds.
	RecordDuration(name string, seconds float64, labels map[string]string)

	// RecordCounter increments a counter.
	RecordCounter(name string, labels map[string]string)
}

// AuditLogger receives one record per invocation outcome.
type AuditLogger interface {
	LogExecution(ctx context.Context, cmd *Command, result *Result, execErr error)
}

// runner abstracts the spawn primitive so tests can substitute one.
type runner interface {
	Run(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error)
}

// executor is the default implementation: an immutable bundle of
// collaborators, safe for concurrent use. Each call spawns an independent
// child and waits for it; there is no pool, no queue and no concurrency
// limit at this layer.
type executor struct {
	runner    runner
	logger    logging.Logger
	policy    Policy
	telemetry Telemetry
	audit     AuditLogger
	hooks     []Hook
	baseEnv   []string
}

// Builder creates configured Executor instances.
type Builder struct {
	logger    logging.Logger
	policy    Policy
	telemetry Telemetry
	audit     AuditLogger
	hooks     []Hook
	baseEnv   []string
}

// NewBuilder creates a new executor builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithLogger sets the logger. The default is the process-wide logger at
// build time.
func (b *Builder) WithLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// WithPolicy sets the security policy consulted before every spawn.
func (b *Builder) WithPolicy(policy Policy) *Builder {
	b.policy = policy
	return b
}

// WithHooks adds execution hooks.
func (b *Builder) WithHooks(hooks ...Hook) *Builder {
	b.hooks = append(b.hooks, hooks...)
	return b
}

// WithTelemetry sets the telemetry provider.
func (b *Builder) WithTelemetry(telemetry Telemetry) *Builder {
	b.telemetry = telemetry
	return b
}

// WithAuditLogger sets the audit recorder.
func (b *Builder) WithAuditLogger(audit AuditLogger) *Builder {
	b.audit = audit
	return b
}

// WithBaseEnvironment replaces the base environment handed to children.
// The default (nil) inherits the parent's environment at spawn time, so OS
// executable lookup behaves exactly as it would for the invoking user;
// pass envutil.Minimal() for scrubbed execution. Command.Env overrides
// apply on top of the base either way.
func (b *Builder) WithBaseEnvironment(env []string) *Builder {
	if env == nil {
		b.baseEnv = nil
		return b
	}
	b.baseEnv = make([]string, len(env))
	copy(b.baseEnv, env)
	return b
}

// Build creates the executor.
func (b *Builder) Build() (Executor, error) {
	logger := b.logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &executor{
		runner:    internalexec.NewRunner(),
		logger:    logger,
		policy:    b.policy,
		telemetry: b.telemetry,
		audit:     b.audit,
		hooks:     b.hooks,
		baseEnv:   b.baseEnv,
	}, nil
}

// Execute runs a command and captures its output.
func (e *executor) Execute(ctx context.Context, cmd *Command) (*Result, error) {
	return e.run(ctx, "executor.Execute", cmd, cmdStdin(cmd), nil, nil)
}

// ExecuteInherited runs a command wired to the parent's standard streams.
func (e *executor) ExecuteInherited(ctx context.Context, cmd *Command) error {
	stdin := cmdStdin(cmd)
	if stdin == nil {
		stdin = os.Stdin
	}
	_, err := e.run(ctx, "executor.ExecuteInherited", cmd, stdin, os.Stdout, os.Stderr)
	return err
}

// Stream runs a command with output routed to the given writers.
func (e *executor) Stream(ctx context.Context, cmd *Command, stdout, stderr io.Writer) error {
	if stdout == nil || stderr == nil {
		return fmt.Errorf("%w: stream writers must not be nil", ErrInvalidCommand)
	}
	_, err := e.run(ctx, "executor.Stream", cmd, cmdStdin(cmd), stdout, stderr)
	return err
}

// run is the single execution pipeline behind all three modes.
func (e *executor) run(ctx context.Context, op string, cmd *Command, stdin io.Reader, stdout, stderr io.Writer) (*Result, error) {
	if cmd == nil || cmd.Program == "" {
		return nil, fmt.Errorf("%w: program is required", ErrInvalidCommand)
	}

	commandID := uuid.New().String()

	endSpan := func() {}
	if e.telemetry != nil {
		ctx, endSpan = e.telemetry.StartSpan(ctx, op)
	}
	defer endSpan()

	for _, hook := range e.hooks {
		if err := hook.BeforeExecute(ctx, cmd); err != nil {
			return nil, fmt.Errorf("before-execute hook: %w", err)
		}
	}

	if e.policy != nil {
		decision, err := e.policy.Validate(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("policy validation: %w", err)
		}
		if !decision.Allowed {
			denied := NewPolicyViolationError(cmd.Program, decision.Violations)
			e.logger.Error("policy denied command",
				"command_id", commandID, "program", cmd.Program, "argc", len(cmd.Args))
			e.recordOutcome(ctx, op, cmd, nil, nil, denied)
			return nil, denied
		}
	}

	// Argument content is untrusted and never logged, only the count.
	e.logger.Verbose("spawning child process",
		"command_id", commandID, "program", cmd.Program, "argc", len(cmd.Args))

	runResult, runErr := e.runner.Run(ctx, &internalexec.RunConfig{
		Program:    cmd.Program,
		Args:       cmd.Args,
		Env:        e.childEnv(cmd),
		WorkingDir: cmd.WorkingDir,
		Stdin:      stdin,
		Stdout:     stdout,
		Stderr:     stderr,
	})

	result, err := classify(cmd, commandID, runResult, runErr)
	if err != nil {
		e.logger.Error("command failed",
			"command_id", commandID, "program", cmd.Program, "argc", len(cmd.Args), "error", err)
	} else {
		e.logger.Debug("command completed",
			"command_id", commandID, "program", cmd.Program, "duration", result.Duration)
	}

	e.recordOutcome(ctx, op, cmd, result, runResult, err)

	for _, hook := range e.hooks {
		hook.AfterExecute(ctx, cmd, result, err)
	}

	return result, err
}

// classify translates the runner's report into the public contract: a
// Result for a zero exit, a taxonomy error for everything else. A canceled
// context passes through as the caller's own ctx.Err().
func classify(cmd *Command, commandID string, runResult *internalexec.RunResult, runErr error) (*Result, error) {
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		// Cancellation before the spawn arrives with no run result; it is
		// still the caller's doing, not a spawn failure.
		return nil, fmt.Errorf("executing %s: %w", cmd.Program, runErr)
	case runErr != nil && runResult == nil:
		return nil, NewSpawnError(cmd.Program, runErr)
	case runErr != nil:
		return nil, fmt.Errorf("executing %s: %w", cmd.Program, runErr)
	case runResult.Signal != "":
		return nil, NewSignalError(cmd.Program, runResult.Signal)
	case runResult.ExitCode != 0:
		return nil, NewExitError(cmd.Program, runResult.ExitCode, runResult.Stdout, runResult.Stderr)
	default:
		return &Result{
			CommandID: commandID,
			Stdout:    runResult.Stdout,
			Stderr:    runResult.Stderr,
			StartedAt: runResult.StartedAt,
			Duration:  runResult.Duration,
		}, nil
	}
}

// childEnv builds the child environment: the configured base, the parent's
// environment by default, with the command's overrides applied.
func (e *executor) childEnv(cmd *Command) []string {
	base := e.baseEnv
	if base == nil {
		base = os.Environ()
	}
	return envutil.Merge(base, cmd.Env)
}

// recordOutcome feeds telemetry and the audit trail. Both collaborators
// are optional.
func (e *executor) recordOutcome(ctx context.Context, op string, cmd *Command, result *Result, runResult *internalexec.RunResult, err error) {
	if e.telemetry != nil {
		labels := map[string]string{
			"operation": op,
			"program":   cmd.Program,
			"outcome":   Outcome(err),
		}
		e.telemetry.RecordCounter("executions", labels)
		if runResult != nil {
			e.telemetry.RecordDuration("execution_duration_seconds", runResult.Duration.Seconds(), labels)
		}
	}

	if e.audit != nil {
		e.audit.LogExecution(ctx, cmd, result, err)
	}
}

func cmdStdin(cmd *Command) io.Reader {
	if cmd == nil {
		return nil
	}
	return cmd.Stdin
}
