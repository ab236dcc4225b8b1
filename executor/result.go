package executor

import (
	"time"
)

// Result is the outcome of a successful capturing execution. A result
// exists only when the child ran to completion with exit status 0; every
// other outcome travels through the failure taxonomy in errors.go.
type Result struct {
	// CommandID identifies this invocation for tracing and audit.
	CommandID string

	// Stdout is the captured standard output, byte for byte.
	Stdout []byte

	// Stderr is the captured standard error, byte for byte. A zero exit
	// does not imply silence on stderr.
	Stderr []byte

	// StartedAt is when the child process was started.
	StartedAt time.Time

	// Duration is the wall-clock time from start to exit.
	Duration time.Duration
}

// StdoutString returns stdout as a string. Nothing is trimmed; trailing
// newlines are the caller's concern.
func (r *Result) StdoutString() string {
	return string(r.Stdout)
}

// StderrString returns stderr as a string.
func (r *Result) StderrString() string {
	return string(r.Stderr)
}
