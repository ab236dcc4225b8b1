package cli

import (
	"errors"

	"github.com/guardexec/guardexec/executor"
)

// Exit codes for failures that are not the child's own, following the
// shell convention for "cannot execute" and "not found".
const (
	exitFailure     = 1
	exitPolicy      = 126
	exitSpawnFailed = 127
	exitSignaled    = 128
)

// ExitCode maps an error from Execute to the process exit code: the
// child's own code for a non-zero exit, 127 when nothing was started,
// 128 for a signal death, 126 for a policy denial and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *executor.ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, executor.ErrSpawn):
		return exitSpawnFailed
	case errors.Is(err, executor.ErrSignaled):
		return exitSignaled
	case errors.Is(err, executor.ErrPolicyDenied):
		return exitPolicy
	default:
		return exitFailure
	}
}
