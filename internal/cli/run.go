package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guardexec/guardexec/executor"
	"github.com/guardexec/guardexec/internal/envutil"
	"github.com/guardexec/guardexec/logging"
	"github.com/guardexec/guardexec/observability"
	"github.com/guardexec/guardexec/policy"
)

// runOptions holds the run command's flags.
type runOptions struct {
	dir          string
	envPairs     []string
	policyFile   string
	auditLog     string
	scrubEnv     bool
	inheritStdio bool
}

func newRunCmd(state *appState) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] -- PROGRAM [ARG...]",
		Short: "Execute a program without a shell",
		Long: `Run executes PROGRAM with ARGs passed as a discrete vector. The shell
that invoked guardexec expanded nothing on the far side of --, and no
shell runs on this side, so each argument reaches the child verbatim.

The process exit code mirrors the child: its own code for a non-zero
exit, 127 when the program could not be started, 128 when it was
terminated by a signal, and 126 when policy denied it.`,
		Example: `  guardexec run -- git status
  guardexec run --dir /srv/repo -- git checkout feature/login
  guardexec run --policy policy.yaml --audit-log audit.log -- ls -l /tmp
  guardexec run --scrub-env --env GIT_DIR=/srv/repo/.git -- git rev-parse HEAD`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecute(cmd, state, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dir, "dir", "", "Working directory for the child process")
	flags.StringArrayVar(&opts.envPairs, "env", nil, "Environment override as KEY=VALUE (repeatable)")
	flags.BoolVar(&opts.scrubEnv, "scrub-env", false, "Start from a minimal environment instead of inheriting the parent's")
	flags.BoolVar(&opts.inheritStdio, "inherit-stdio", false, "Connect the child directly to this process's standard streams")
	flags.StringVar(&opts.policyFile, "policy", "", "Policy file the command must satisfy before it runs")
	flags.StringVar(&opts.auditLog, "audit-log", "", "Append a JSON audit record per invocation to this file")

	return cmd
}

func runExecute(cmd *cobra.Command, state *appState, opts *runOptions, args []string) error {
	ctx := cmd.Context()

	builder := executor.NewBuilder().WithLogger(logging.GetLogger())

	if opts.scrubEnv {
		builder.WithBaseEnvironment(envutil.Minimal())
	}

	if path := resolvePolicyPath(state, opts); path != "" {
		loader, err := policy.NewLoader(filepath.Dir(path), filepath.Base(path))
		if err != nil {
			return fmt.Errorf("opening policy: %w", err)
		}
		compiled, err := loader.Load(ctx)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		builder.WithPolicy(compiled)
	}

	if opts.auditLog != "" {
		audit, err := observability.NewFileAuditLogger(observability.AuditConfig{
			Enabled:  true,
			Level:    observability.AuditLogAll,
			BasePath: filepath.Dir(opts.auditLog),
			FilePath: filepath.Base(opts.auditLog),
		})
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer audit.Close()
		builder.WithAuditLogger(observability.NewExecutionRecorder(audit))
	}

	exec, err := builder.Build()
	if err != nil {
		return err
	}

	child, err := buildChildCommand(opts, args)
	if err != nil {
		return err
	}

	if opts.inheritStdio {
		return exec.ExecuteInherited(ctx, child)
	}

	result, err := exec.Execute(ctx, child)
	if err != nil {
		// Captured output still reaches the caller on failure.
		var exitErr *executor.ExitError
		if errors.As(err, &exitErr) {
			cmd.OutOrStdout().Write(exitErr.Stdout)
			cmd.ErrOrStderr().Write(exitErr.Stderr)
		}
		return err
	}

	cmd.OutOrStdout().Write(result.Stdout)
	cmd.ErrOrStderr().Write(result.Stderr)
	return nil
}

// buildChildCommand translates flags into an executor command.
func buildChildCommand(opts *runOptions, args []string) (*executor.Command, error) {
	builder := executor.NewCommand(args[0], args[1:]...)

	if opts.dir != "" {
		abs, err := filepath.Abs(opts.dir)
		if err != nil {
			return nil, fmt.Errorf("resolving --dir: %w", err)
		}
		builder.WithWorkingDir(abs)
	}

	for _, pair := range opts.envPairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env %q, expected KEY=VALUE", pair)
		}
		builder.WithEnv(key, value)
	}

	return builder.Build()
}

// resolvePolicyPath prefers the flag; without it, the configured policy
// file applies only when it actually exists, so a fresh install runs
// unrestricted instead of failing on a missing default path.
func resolvePolicyPath(state *appState, opts *runOptions) string {
	if opts.policyFile != "" {
		return opts.policyFile
	}
	if state.cfg == nil || state.cfg.Policy.File == "" {
		return ""
	}
	path := filepath.Join(state.cfg.Policy.BasePath, state.cfg.Policy.File)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
