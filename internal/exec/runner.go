// Package exec wraps process creation for the rest of the module.
// This is the ONLY package in the library that imports os/exec.
// Every spawn goes through Runner.Run.
package exec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"
)

// Runner starts child processes from a discrete argument vector.
// It is stateless and safe for concurrent use.
type Runner struct{}

// NewRunner creates a command runner.
func NewRunner() *Runner {
	return &Runner{}
}

// RunConfig describes a single child process.
type RunConfig struct {
	// Program is the executable to run. A bare name is resolved through the
	// operating system's executable search path.
	Program string

	// Args is the argument vector, excluding the program name.
	Args []string

	// Env is the child environment in KEY=value form. Nil inherits the
	// parent's environment.
	Env []string

	// WorkingDir is the child's working directory. Empty inherits the
	// parent's.
	WorkingDir string

	// Stdin provides the child's standard input.
	Stdin io.Reader

	// Stdout receives standard output. Nil captures it into the result.
	Stdout io.Writer

	// Stderr receives standard error. Nil captures it into the result.
	Stderr io.Writer
}

// RunResult reports how the child ran. A result exists whenever the child
// was started; only a failure to start yields none.
type RunResult struct {
	// StartedAt is when the child was started.
	StartedAt time.Time

	// Duration is the wall-clock time from start to exit.
	Duration time.Duration

	// Stdout holds captured standard output when not streaming.
	Stdout []byte

	// Stderr holds captured standard error when not streaming.
	Stderr []byte

	// ExitCode is the child's exit code, -1 when terminated by a signal.
	ExitCode int

	// Signal names the terminating signal, empty when the child exited.
	Signal string
}

// Run starts the program and waits for it.
//
// The program and its arguments always travel as a discrete vector; no shell
// is ever involved. When the child cannot be started at all, Run returns a
// nil result and the underlying OS error. Once the child has started, Run
// returns a populated result with the exit code or terminating signal, and a
// nil error: classifying a non-zero exit is the caller's job. A canceled
// context kills the child and surfaces as ctx.Err().
func (r *Runner) Run(ctx context.Context, config *RunConfig) (*RunResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// #nosec G204 -- callers validate program and args before this point
	cmd := exec.CommandContext(ctx, config.Program, config.Args...)

	if config.Env != nil {
		cmd.Env = config.Env
	}
	if config.WorkingDir != "" {
		cmd.Dir = config.WorkingDir
	}
	if config.Stdin != nil {
		cmd.Stdin = config.Stdin
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	if config.Stdout != nil {
		cmd.Stdout = config.Stdout
	} else {
		cmd.Stdout = &stdoutBuf
	}
	if config.Stderr != nil {
		cmd.Stderr = config.Stderr
	} else {
		cmd.Stderr = &stderrBuf
	}

	cmd.SysProcAttr = defaultSysProcAttr()

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	waitErr := cmd.Wait()

	result := &RunResult{
		StartedAt: started,
		Duration:  time.Since(started),
	}

	if config.Stdout == nil {
		result.Stdout = stdoutBuf.Bytes()
	}
	if config.Stderr == nil {
		result.Stderr = stderrBuf.Bytes()
	}

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
		if name, ok := signalName(cmd.ProcessState.Sys()); ok {
			result.Signal = name
		}
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// Wait failed for a reason other than the child's own exit status,
		// typically an I/O error on one of the pipes.
		return result, waitErr
	}

	return result, nil
}
