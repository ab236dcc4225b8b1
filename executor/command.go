// Package executor provides the secure command execution abstraction.
package executor

import (
	"fmt"
	"io"
	"path/filepath"
)

// Command describes a program invocation. The program and each argument
// travel as discrete vector elements; nothing here is ever parsed by a
// shell. Commands are immutable once built.
type Command struct {
	// Program is the executable to run. A bare name is resolved through the
	// operating system's executable search path; an absolute path is used
	// as is.
	Program string

	// Args are the command arguments, excluding the program name. Each
	// element reaches the child verbatim.
	Args []string

	// Env holds environment overrides applied on top of the executor's base
	// environment.
	Env map[string]string

	// WorkingDir is the working directory for the command. Empty inherits
	// the parent's.
	WorkingDir string

	// Stdin provides input to the command.
	Stdin io.Reader

	// Metadata contains arbitrary key-value pairs for tracing and audit.
	Metadata map[string]string
}

// CommandBuilder provides a fluent API for constructing commands.
// The first error sticks: later calls become no-ops and Build reports it.
type CommandBuilder struct {
	cmd *Command
	err error
}

// NewCommand creates a CommandBuilder for the given program and arguments.
func NewCommand(program string, args ...string) *CommandBuilder {
	return &CommandBuilder{
		cmd: &Command{
			Program:  program,
			Args:     args,
			Env:      make(map[string]string),
			Metadata: make(map[string]string),
		},
	}
}

// WithArgs appends arguments to the vector.
func (b *CommandBuilder) WithArgs(args ...string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.cmd.Args = append(b.cmd.Args, args...)
	return b
}

// WithWorkingDir sets the working directory.
func (b *CommandBuilder) WithWorkingDir(dir string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	if dir != "" && !filepath.IsAbs(dir) {
		b.err = fmt.Errorf("%w: working directory must be an absolute path", ErrInvalidCommand)
		return b
	}
	b.cmd.WorkingDir = dir
	return b
}

// WithEnv adds an environment override.
func (b *CommandBuilder) WithEnv(key, value string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	if key == "" {
		b.err = fmt.Errorf("%w: environment key must not be empty", ErrInvalidCommand)
		return b
	}
	b.cmd.Env[key] = value
	return b
}

// WithEnvMap adds multiple environment overrides.
func (b *CommandBuilder) WithEnvMap(env map[string]string) *CommandBuilder {
	for k, v := range env {
		b.WithEnv(k, v)
	}
	return b
}

// WithStdin sets the standard input reader.
func (b *CommandBuilder) WithStdin(stdin io.Reader) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.cmd.Stdin = stdin
	return b
}

// WithMetadata adds metadata for tracing and audit.
func (b *CommandBuilder) WithMetadata(key, value string) *CommandBuilder {
	if b.err != nil {
		return b
	}
	b.cmd.Metadata[key] = value
	return b
}

// Build validates and returns the command.
func (b *CommandBuilder) Build() (*Command, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.cmd.Program == "" {
		return nil, fmt.Errorf("%w: program is required", ErrInvalidCommand)
	}

	return b.cmd, nil
}

// MustBuild validates and returns the command, panicking on error.
func (b *CommandBuilder) MustBuild() *Command {
	cmd, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cmd
}

// Clone creates a deep copy of the command. The Stdin reader is shared, not
// copied.
func (c *Command) Clone() *Command {
	clone := &Command{
		Program:    c.Program,
		Args:       make([]string, len(c.Args)),
		Env:        make(map[string]string, len(c.Env)),
		WorkingDir: c.WorkingDir,
		Stdin:      c.Stdin,
		Metadata:   make(map[string]string, len(c.Metadata)),
	}

	copy(clone.Args, c.Args)

	for k, v := range c.Env {
		clone.Env[k] = v
	}

	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}

// String renders the program and the argument count. Argument content is
// untrusted and never rendered, so the result is safe to log.
func (c *Command) String() string {
	return fmt.Sprintf("%s (%d args)", c.Program, len(c.Args))
}
