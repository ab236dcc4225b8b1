// Package hooks provides extension points for the command execution
// lifecycle.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/guardexec/guardexec/executor"
	"github.com/guardexec/guardexec/logging"
)

// Hook identifies an extension point participant.
type Hook interface {
	// Name returns a unique identifier for the hook.
	Name() string

	// Priority determines execution order (lower = earlier).
	Priority() int
}

// PreExecuteHook runs before a command spawns. Returning an error vetoes
// the execution. Hooks observe the command; they never rewrite it.
type PreExecuteHook interface {
	Hook
	BeforeExecute(ctx context.Context, cmd *executor.Command) error
}

// PostExecuteHook runs after a command finishes, successfully or not.
// It observes the outcome and cannot change it. result is nil when the
// execution failed before producing one.
type PostExecuteHook interface {
	Hook
	AfterExecute(ctx context.Context, cmd *executor.Command, result *executor.Result, execErr error)
}

// Registry manages hook registration and dispatch. A populated registry
// satisfies the executor's hook contract and can be handed directly to
// the executor builder.
type Registry struct {
	pre  []PreExecuteHook
	post []PostExecuteHook
	mu   sync.RWMutex
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{
		pre:  make([]PreExecuteHook, 0),
		post: make([]PostExecuteHook, 0),
	}
}

// Register adds a hook to the registry. A hook may implement both
// lifecycle interfaces and is then registered for both phases.
func (r *Registry) Register(hook Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	registered := false

	if h, ok := hook.(PreExecuteHook); ok {
		r.pre = append(r.pre, h)
		sort.Slice(r.pre, func(i, j int) bool {
			return r.pre[i].Priority() < r.pre[j].Priority()
		})
		registered = true
	}

	if h, ok := hook.(PostExecuteHook); ok {
		r.post = append(r.post, h)
		sort.Slice(r.post, func(i, j int) bool {
			return r.post[i].Priority() < r.post[j].Priority()
		})
		registered = true
	}

	if !registered {
		return fmt.Errorf("hook %s implements no lifecycle interface", hook.Name())
	}

	return nil
}

// Unregister removes a hook by name from both phases.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pre = removePre(r.pre, name)
	r.post = removePost(r.post, name)
}

// BeforeExecute runs the pre-execute hooks in priority order. The first
// veto stops the chain and is returned with the hook's name attached.
func (r *Registry) BeforeExecute(ctx context.Context, cmd *executor.Command) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, hook := range r.pre {
		if err := hook.BeforeExecute(ctx, cmd); err != nil {
			return fmt.Errorf("hook %s: %w", hook.Name(), err)
		}
	}
	return nil
}

// AfterExecute runs the post-execute hooks in priority order. All hooks
// run even when the execution failed.
func (r *Registry) AfterExecute(ctx context.Context, cmd *executor.Command, result *executor.Result, execErr error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, hook := range r.post {
		hook.AfterExecute(ctx, cmd, result, execErr)
	}
}

func removePre(hooks []PreExecuteHook, name string) []PreExecuteHook {
	result := make([]PreExecuteHook, 0, len(hooks))
	for _, h := range hooks {
		if h.Name() != name {
			result = append(result, h)
		}
	}
	return result
}

func removePost(hooks []PostExecuteHook, name string) []PostExecuteHook {
	result := make([]PostExecuteHook, 0, len(hooks))
	for _, h := range hooks {
		if h.Name() != name {
			result = append(result, h)
		}
	}
	return result
}

// FuncHook adapts plain functions to the lifecycle interfaces. A nil
// field makes that phase a no-op. Screening registries plug in this way:
//
//	h := hooks.NewFuncHook("screening", 10)
//	h.Before = registry.ValidateAll
type FuncHook struct {
	name     string
	priority int

	// Before vetoes the execution when it returns an error.
	Before func(ctx context.Context, cmd *executor.Command) error

	// After observes the outcome.
	After func(ctx context.Context, cmd *executor.Command, result *executor.Result, execErr error)
}

// NewFuncHook creates a named hook with no behavior attached yet.
func NewFuncHook(name string, priority int) *FuncHook {
	return &FuncHook{name: name, priority: priority}
}

// Name returns the hook name.
func (h *FuncHook) Name() string { return h.name }

// Priority returns the execution priority.
func (h *FuncHook) Priority() int { return h.priority }

// BeforeExecute calls Before when set.
func (h *FuncHook) BeforeExecute(ctx context.Context, cmd *executor.Command) error {
	if h.Before == nil {
		return nil
	}
	return h.Before(ctx, cmd)
}

// AfterExecute calls After when set.
func (h *FuncHook) AfterExecute(ctx context.Context, cmd *executor.Command, result *executor.Result, execErr error) {
	if h.After != nil {
		h.After(ctx, cmd, result, execErr)
	}
}

// LoggingHook logs lifecycle events through the leveled logger. Lines
// carry the program and argument count, never argument content.
type LoggingHook struct {
	logger logging.Logger
}

// NewLoggingHook creates a logging hook. A nil logger falls back to the
// process logger.
func NewLoggingHook(logger logging.Logger) *LoggingHook {
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &LoggingHook{logger: logger}
}

// Name returns the hook name.
func (h *LoggingHook) Name() string { return "logging" }

// Priority returns the execution priority. Logging runs after every
// other hook.
func (h *LoggingHook) Priority() int { return 1000 }

// BeforeExecute logs the upcoming execution.
func (h *LoggingHook) BeforeExecute(ctx context.Context, cmd *executor.Command) error {
	h.logger.Verbose("starting command",
		"program", cmd.Program,
		"argc", len(cmd.Args))
	return nil
}

// AfterExecute logs the outcome.
func (h *LoggingHook) AfterExecute(ctx context.Context, cmd *executor.Command, result *executor.Result, execErr error) {
	if execErr != nil {
		h.logger.Warn("command failed",
			"program", cmd.Program,
			"outcome", executor.Outcome(execErr))
		return
	}
	h.logger.Debug("command finished",
		"program", cmd.Program,
		"duration", result.Duration)
}
