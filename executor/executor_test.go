package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	internalexec "github.com/guardexec/guardexec/internal/exec"
	"github.com/guardexec/guardexec/logging"
)

// mockRunner substitutes the spawn primitive.
type mockRunner struct {
	mu      sync.Mutex
	runFunc func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error)
	configs []*internalexec.RunConfig
}

func (m *mockRunner) Run(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
	m.mu.Lock()
	m.configs = append(m.configs, config)
	m.mu.Unlock()

	if m.runFunc != nil {
		return m.runFunc(ctx, config)
	}
	return &internalexec.RunResult{
		ExitCode:  0,
		Stdout:    []byte("output"),
		Stderr:    []byte(""),
		StartedAt: time.Now(),
		Duration:  100 * time.Millisecond,
	}, nil
}

func (m *mockRunner) lastConfig() *internalexec.RunConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.configs) == 0 {
		return nil
	}
	return m.configs[len(m.configs)-1]
}

// mockPolicy is a mock policy implementation.
type mockPolicy struct {
	validateFunc func(ctx context.Context, cmd *Command) (*ValidationResult, error)
}

func (m *mockPolicy) Validate(ctx context.Context, cmd *Command) (*ValidationResult, error) {
	if m.validateFunc != nil {
		return m.validateFunc(ctx, cmd)
	}
	return &ValidationResult{Allowed: true}, nil
}

// mockTelemetry records what the executor reports.
type mockTelemetry struct {
	mu        sync.Mutex
	spans     []string
	counters  []map[string]string
	durations []map[string]string
}

func (m *mockTelemetry) StartSpan(ctx context.Context, name string) (context.Context, func()) {
	m.mu.Lock()
	m.spans = append(m.spans, name)
	m.mu.Unlock()
	return ctx, func() {}
}

func (m *mockTelemetry) RecordDuration(name string, seconds float64, labels map[string]string) {
	m.mu.Lock()
	m.durations = append(m.durations, labels)
	m.mu.Unlock()
}

func (m *mockTelemetry) RecordCounter(name string, labels map[string]string) {
	m.mu.Lock()
	m.counters = append(m.counters, labels)
	m.mu.Unlock()
}

// mockAudit records LogExecution calls.
type mockAudit struct {
	mu    sync.Mutex
	calls int
	last  error
}

func (m *mockAudit) LogExecution(ctx context.Context, cmd *Command, result *Result, execErr error) {
	m.mu.Lock()
	m.calls++
	m.last = execErr
	m.mu.Unlock()
}

// mockHook observes and optionally vetoes execution.
type mockHook struct {
	beforeFunc func(ctx context.Context, cmd *Command) error
	afterFunc  func(ctx context.Context, cmd *Command, result *Result, execErr error)
}

func (m *mockHook) BeforeExecute(ctx context.Context, cmd *Command) error {
	if m.beforeFunc != nil {
		return m.beforeFunc(ctx, cmd)
	}
	return nil
}

func (m *mockHook) AfterExecute(ctx context.Context, cmd *Command, result *Result, execErr error) {
	if m.afterFunc != nil {
		m.afterFunc(ctx, cmd, result, execErr)
	}
}

// newTestExecutor builds an executor around a mock runner.
func newTestExecutor(r runner, configure func(*executor)) *executor {
	e := &executor{
		runner: r,
		logger: logging.Nop(),
	}
	if configure != nil {
		configure(e)
	}
	return e
}

func TestNewBuilder(t *testing.T) {
	builder := NewBuilder()
	if builder == nil {
		t.Fatal("NewBuilder() returned nil")
	}

	exec, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if exec == nil {
		t.Fatal("Build() returned nil executor")
	}
}

func TestExecutor_Execute_Success(t *testing.T) {
	mock := &mockRunner{}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/bin/echo", "hello").MustBuild()

	result, err := exec.Execute(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result == nil {
		t.Fatal("Execute returned nil result")
	}
	if result.CommandID == "" {
		t.Error("CommandID should not be empty")
	}
	if got := result.StdoutString(); got != "output" {
		t.Errorf("Expected stdout %q, got %q", "output", got)
	}
	if result.Duration != 100*time.Millisecond {
		t.Errorf("Expected duration 100ms, got %v", result.Duration)
	}
}

func TestExecutor_Execute_ArgumentVector(t *testing.T) {
	mock := &mockRunner{}
	exec := newTestExecutor(mock, nil)

	// Shell syntax in arguments reaches the runner as literal vector
	// elements; nothing joins or reparses them.
	hostile := []string{"$(whoami)", "; rm -rf /", "a b c"}
	cmd := NewCommand("/bin/echo", hostile...).MustBuild()

	if _, err := exec.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	config := mock.lastConfig()
	if config == nil {
		t.Fatal("Runner was never called")
	}
	if config.Program != "/bin/echo" {
		t.Errorf("Expected program /bin/echo, got %q", config.Program)
	}
	if len(config.Args) != len(hostile) {
		t.Fatalf("Expected %d args, got %d", len(hostile), len(config.Args))
	}
	for i, arg := range hostile {
		if config.Args[i] != arg {
			t.Errorf("Arg %d: expected %q, got %q", i, arg, config.Args[i])
		}
	}
}

func TestExecutor_Execute_SpawnFailure(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return nil, errors.New("no such file or directory")
		},
	}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/no/such/binary").MustBuild()

	_, err := exec.Execute(context.Background(), cmd)
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("Expected ErrSpawn, got %v", err)
	}

	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("Expected SpawnError, got %T", err)
	}
	if spawnErr.Program != "/no/such/binary" {
		t.Errorf("Expected program on the error, got %q", spawnErr.Program)
	}
}

func TestExecutor_Execute_NonZeroExit(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return &internalexec.RunResult{
				ExitCode: 2,
				Stdout:   []byte("partial"),
				Stderr:   []byte("fatal: bad revision"),
			}, nil
		},
	}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/usr/bin/git", "rev-parse", "nope").MustBuild()

	result, err := exec.Execute(context.Background(), cmd)
	if result != nil {
		t.Error("A non-zero exit must not produce a Result")
	}
	if !errors.Is(err, ErrNonZeroExit) {
		t.Fatalf("Expected ErrNonZeroExit, got %v", err)
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Expected ExitError, got %T", err)
	}
	if exitErr.Code != 2 {
		t.Errorf("Expected exit code 2, got %d", exitErr.Code)
	}
	if string(exitErr.Stderr) != "fatal: bad revision" {
		t.Errorf("Expected captured stderr on the failure, got %q", exitErr.Stderr)
	}
	if string(exitErr.Stdout) != "partial" {
		t.Errorf("Expected captured stdout on the failure, got %q", exitErr.Stdout)
	}
}

func TestExecutor_Execute_Signaled(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return &internalexec.RunResult{ExitCode: -1, Signal: "killed"}, nil
		},
	}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/bin/sleep", "60").MustBuild()

	_, err := exec.Execute(context.Background(), cmd)
	if !errors.Is(err, ErrSignaled) {
		t.Fatalf("Expected ErrSignaled, got %v", err)
	}

	var sigErr *SignalError
	if !errors.As(err, &sigErr) {
		t.Fatalf("Expected SignalError, got %T", err)
	}
	if sigErr.Signal != "killed" {
		t.Errorf("Expected signal name killed, got %q", sigErr.Signal)
	}
}

func TestExecutor_Execute_ContextCanceled(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return &internalexec.RunResult{ExitCode: -1, Signal: "killed"}, context.Canceled
		},
	}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/bin/sleep", "60").MustBuild()

	_, err := exec.Execute(context.Background(), cmd)
	if err == nil {
		t.Fatal("Expected an error")
	}
	// Cancellation is the caller's own doing, not part of the taxonomy.
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrSignaled) || errors.Is(err, ErrSpawn) {
		t.Errorf("Cancellation must not masquerade as a taxonomy case: %v", err)
	}
}

func TestExecutor_Execute_CanceledBeforeSpawn(t *testing.T) {
	// A context canceled before the child starts surfaces no run result,
	// the same shape as a spawn failure. It must still classify as the
	// caller's cancellation, not as ErrSpawn.
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return nil, ctx.Err()
		},
	}
	exec := newTestExecutor(mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewCommand("/bin/echo", "hello").MustBuild()
	_, err := exec.Execute(ctx, cmd)
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrSpawn) {
		t.Errorf("Pre-spawn cancellation must not classify as ErrSpawn: %v", err)
	}
	if got := Outcome(err); got != "canceled" {
		t.Errorf("Expected canceled outcome, got %q", got)
	}
}

func TestExecutor_Execute_DeadlineBeforeSpawn(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return nil, context.DeadlineExceeded
		},
	}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/bin/sleep", "10").MustBuild()
	_, err := exec.Execute(context.Background(), cmd)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if errors.Is(err, ErrSpawn) {
		t.Errorf("An expired deadline must not classify as ErrSpawn: %v", err)
	}
}

func TestExecutor_Execute_InvalidCommand(t *testing.T) {
	exec := newTestExecutor(&mockRunner{}, nil)

	if _, err := exec.Execute(context.Background(), nil); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Expected ErrInvalidCommand for nil command, got %v", err)
	}

	if _, err := exec.Execute(context.Background(), &Command{}); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Expected ErrInvalidCommand for empty program, got %v", err)
	}
}

func TestExecutor_Execute_PolicyDenied(t *testing.T) {
	mock := &mockRunner{}
	pol := &mockPolicy{
		validateFunc: func(ctx context.Context, cmd *Command) (*ValidationResult, error) {
			return &ValidationResult{
				Allowed: false,
				Violations: []Violation{
					{Code: "program_not_listed", Field: "program", Message: "program is not listed", Severity: SeverityError},
				},
			}, nil
		},
	}
	exec := newTestExecutor(mock, func(e *executor) { e.policy = pol })

	cmd := NewCommand("/bin/forbidden").MustBuild()

	_, err := exec.Execute(context.Background(), cmd)
	if !errors.Is(err, ErrPolicyDenied) {
		t.Fatalf("Expected ErrPolicyDenied, got %v", err)
	}

	var pvErr *PolicyViolationError
	if !errors.As(err, &pvErr) {
		t.Fatalf("Expected PolicyViolationError, got %T", err)
	}
	if len(pvErr.Violations) != 1 || pvErr.Violations[0].Code != "program_not_listed" {
		t.Errorf("Expected the violation to ride on the error, got %+v", pvErr.Violations)
	}

	if mock.lastConfig() != nil {
		t.Error("A denied command must never reach the runner")
	}
}

func TestExecutor_Execute_PolicyAllowed(t *testing.T) {
	mock := &mockRunner{}
	exec := newTestExecutor(mock, func(e *executor) { e.policy = &mockPolicy{} })

	cmd := NewCommand("/bin/echo", "hello").MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Expected allowed command to run: %v", err)
	}
	if mock.lastConfig() == nil {
		t.Error("Allowed command never reached the runner")
	}
}

func TestExecutor_Execute_PolicyError(t *testing.T) {
	pol := &mockPolicy{
		validateFunc: func(ctx context.Context, cmd *Command) (*ValidationResult, error) {
			return nil, errors.New("policy backend unavailable")
		},
	}
	mock := &mockRunner{}
	exec := newTestExecutor(mock, func(e *executor) { e.policy = pol })

	cmd := NewCommand("/bin/echo").MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); err == nil {
		t.Fatal("Expected a policy evaluation error to surface")
	}
	if mock.lastConfig() != nil {
		t.Error("Nothing may spawn when policy evaluation fails")
	}
}

func TestExecutor_Execute_HookVeto(t *testing.T) {
	mock := &mockRunner{}
	veto := &mockHook{
		beforeFunc: func(ctx context.Context, cmd *Command) error {
			return errors.New("rejected by hook")
		},
	}
	exec := newTestExecutor(mock, func(e *executor) { e.hooks = []Hook{veto} })

	cmd := NewCommand("/bin/echo").MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); err == nil {
		t.Fatal("Expected the hook veto to abort execution")
	}
	if mock.lastConfig() != nil {
		t.Error("A vetoed command must never reach the runner")
	}
}

func TestExecutor_Execute_HookObservesOutcome(t *testing.T) {
	var afterResult *Result
	var afterErr error
	hook := &mockHook{
		afterFunc: func(ctx context.Context, cmd *Command, result *Result, execErr error) {
			afterResult = result
			afterErr = execErr
		},
	}
	exec := newTestExecutor(&mockRunner{}, func(e *executor) { e.hooks = []Hook{hook} })

	cmd := NewCommand("/bin/echo").MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if afterResult == nil {
		t.Error("AfterExecute should see the result on success")
	}
	if afterErr != nil {
		t.Errorf("AfterExecute should see a nil error on success, got %v", afterErr)
	}
}

func TestExecutor_Execute_EnvironmentMerging(t *testing.T) {
	mock := &mockRunner{}
	exec := newTestExecutor(mock, func(e *executor) {
		e.baseEnv = []string{"PATH=/usr/bin", "HOME=/home/u"}
	})

	cmd := NewCommand("/usr/bin/env").
		WithEnv("HOME", "/tmp/override").
		WithEnv("EXTRA", "1").
		MustBuild()

	if _, err := exec.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	env := mock.lastConfig().Env
	want := map[string]bool{
		"PATH=/usr/bin":      false,
		"HOME=/tmp/override": false,
		"EXTRA=1":            false,
	}
	for _, entry := range env {
		if _, ok := want[entry]; ok {
			want[entry] = true
		}
		if entry == "HOME=/home/u" {
			t.Error("Override should have replaced the base HOME entry")
		}
	}
	for entry, seen := range want {
		if !seen {
			t.Errorf("Expected %q in the child environment, got %v", entry, env)
		}
	}
}

func TestExecutor_Execute_CapturesByDefault(t *testing.T) {
	mock := &mockRunner{}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/bin/echo").MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	config := mock.lastConfig()
	if config.Stdout != nil || config.Stderr != nil {
		t.Error("Capturing mode must leave the runner's stream writers nil")
	}
}

func TestExecutor_Stream(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			fmt.Fprint(config.Stdout, "streamed out")
			fmt.Fprint(config.Stderr, "streamed err")
			return &internalexec.RunResult{ExitCode: 0}, nil
		},
	}
	exec := newTestExecutor(mock, nil)

	var stdout, stderr bytes.Buffer
	cmd := NewCommand("/bin/echo").MustBuild()
	if err := exec.Stream(context.Background(), cmd, &stdout, &stderr); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if stdout.String() != "streamed out" {
		t.Errorf("Expected streamed stdout, got %q", stdout.String())
	}
	if stderr.String() != "streamed err" {
		t.Errorf("Expected streamed stderr, got %q", stderr.String())
	}
}

func TestExecutor_Stream_NilWriters(t *testing.T) {
	exec := newTestExecutor(&mockRunner{}, nil)

	cmd := NewCommand("/bin/echo").MustBuild()
	if err := exec.Stream(context.Background(), cmd, nil, nil); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Expected ErrInvalidCommand for nil writers, got %v", err)
	}
}

func TestExecutor_Stream_NonZeroExitCarriesNoOutput(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return &internalexec.RunResult{ExitCode: 1}, nil
		},
	}
	exec := newTestExecutor(mock, nil)

	var stdout, stderr bytes.Buffer
	cmd := NewCommand("/bin/false").MustBuild()
	err := exec.Stream(context.Background(), cmd, &stdout, &stderr)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Expected ExitError, got %v", err)
	}
	// The bytes already went to the caller's writers.
	if exitErr.Stdout != nil || exitErr.Stderr != nil {
		t.Error("Streaming-mode exit errors must not duplicate output")
	}
}

func TestExecutor_ExecuteInherited(t *testing.T) {
	mock := &mockRunner{}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/bin/true").MustBuild()
	if err := exec.ExecuteInherited(context.Background(), cmd); err != nil {
		t.Fatalf("ExecuteInherited failed: %v", err)
	}

	config := mock.lastConfig()
	if config.Stdout != os.Stdout || config.Stderr != os.Stderr {
		t.Error("Inherited mode must wire the parent's standard streams")
	}
	if config.Stdin != os.Stdin {
		t.Error("Inherited mode must wire the parent's stdin when the command has none")
	}
}

func TestExecutor_ExecuteInherited_Failure(t *testing.T) {
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return nil, errors.New("permission denied")
		},
	}
	exec := newTestExecutor(mock, nil)

	cmd := NewCommand("/bin/true").MustBuild()
	if err := exec.ExecuteInherited(context.Background(), cmd); !errors.Is(err, ErrSpawn) {
		t.Errorf("Expected ErrSpawn from inherited mode, got %v", err)
	}
}

func TestExecutor_Telemetry(t *testing.T) {
	tel := &mockTelemetry{}
	exec := newTestExecutor(&mockRunner{}, func(e *executor) { e.telemetry = tel })

	cmd := NewCommand("/bin/echo").MustBuild()
	if _, err := exec.Execute(context.Background(), cmd); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(tel.spans) != 1 || tel.spans[0] != "executor.Execute" {
		t.Errorf("Expected one executor.Execute span, got %v", tel.spans)
	}
	if len(tel.counters) != 1 {
		t.Fatalf("Expected one counter, got %d", len(tel.counters))
	}
	if tel.counters[0]["outcome"] != "success" {
		t.Errorf("Expected success outcome label, got %v", tel.counters[0])
	}
}

func TestExecutor_Audit(t *testing.T) {
	audit := &mockAudit{}
	mock := &mockRunner{
		runFunc: func(ctx context.Context, config *internalexec.RunConfig) (*internalexec.RunResult, error) {
			return &internalexec.RunResult{ExitCode: 1}, nil
		},
	}
	exec := newTestExecutor(mock, func(e *executor) { e.audit = audit })

	cmd := NewCommand("/bin/false").MustBuild()
	_, err := exec.Execute(context.Background(), cmd)
	if err == nil {
		t.Fatal("Expected an error")
	}

	if audit.calls != 1 {
		t.Fatalf("Expected one audit record, got %d", audit.calls)
	}
	if !errors.Is(audit.last, ErrNonZeroExit) {
		t.Errorf("Expected the audit record to carry the failure, got %v", audit.last)
	}
}

func TestExecutor_ConcurrentExecutions(t *testing.T) {
	mock := &mockRunner{}
	exec := newTestExecutor(mock, nil)

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := NewCommand("/bin/echo", fmt.Sprintf("%d", i)).MustBuild()
			_, errs[i] = exec.Execute(context.Background(), cmd)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Concurrent execution %d failed: %v", i, err)
		}
	}

	mock.mu.Lock()
	calls := len(mock.configs)
	mock.mu.Unlock()
	if calls != n {
		t.Errorf("Expected %d independent spawns, got %d", n, calls)
	}
}
