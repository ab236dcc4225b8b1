// Package observability provides the audit trail, telemetry and
// in-process metrics for command execution.
package observability

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/victoralfred/gowritter/safepath"

	"github.com/guardexec/guardexec/executor"
	"github.com/guardexec/guardexec/logging"
)

// AuditLogger provides append-only audit logging.
type AuditLogger interface {
	// Log records an audit event.
	Log(ctx context.Context, event *AuditEvent) error

	// Query returns recorded events matching the filter.
	Query(ctx context.Context, query *AuditQuery) ([]*AuditEvent, error)

	// Close closes the audit logger.
	Close() error
}

// AuditEvent is one record in the audit trail. Unlike diagnostic logs,
// audit records carry the full argument vector: the trail exists to
// reconstruct what ran, and JSON encoding keeps hostile argument bytes
// inert.
type AuditEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ID         string            `json:"id"`
	Program    string            `json:"program"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Outcome    string            `json:"outcome"`
	Signal     string            `json:"signal,omitempty"`
	Error      string            `json:"error,omitempty"`
	Args       []string          `json:"args"`
	Duration   time.Duration     `json:"duration"`
	ExitCode   int               `json:"exit_code"`
}

// AuditQuery filters audit events.
type AuditQuery struct {
	// Since is the start of the time range. Zero means unbounded.
	Since time.Time

	// Until is the end of the time range. Zero means unbounded.
	Until time.Time

	// Program filters by program.
	Program string

	// Outcome filters by outcome label.
	Outcome string

	// Limit is the maximum number of events to return. Zero means
	// unlimited.
	Limit int
}

// AuditLogLevel determines which events are recorded.
type AuditLogLevel string

const (
	// AuditLogAll records every event.
	AuditLogAll AuditLogLevel = "all"

	// AuditLogFailures records only events whose outcome is not success.
	AuditLogFailures AuditLogLevel = "failures"

	// AuditLogPolicyViolations records only policy denials.
	AuditLogPolicyViolations AuditLogLevel = "policy_violations"
)

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Level    AuditLogLevel
	BasePath string
	FilePath string
	Enabled  bool
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:  true,
		Level:    AuditLogAll,
		BasePath: "/var/log",
		FilePath: "guardexec/audit.log",
	}
}

// fileAuditLogger implements AuditLogger as JSON lines under a jailed
// base path.
type fileAuditLogger struct {
	safePath *safepath.SafePath
	config   AuditConfig
	mu       sync.Mutex
}

// NewFileAuditLogger creates a file-based audit logger. Writes are
// confined to the configured base path.
func NewFileAuditLogger(config AuditConfig) (AuditLogger, error) {
	sp, err := safepath.New(config.BasePath)
	if err != nil {
		return nil, fmt.Errorf("creating safe path: %w", err)
	}

	return &fileAuditLogger{
		config:   config,
		safePath: sp,
	}, nil
}

// Log implements AuditLogger.Log.
func (l *fileAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if !l.config.Enabled {
		return nil
	}

	if !l.shouldLog(event) {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.safePath.AppendFile(l.config.FilePath, data, 0o644); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}

	return nil
}

// Query implements AuditLogger.Query by scanning the JSON-lines file.
func (l *fileAuditLogger) Query(ctx context.Context, query *AuditQuery) ([]*AuditEvent, error) {
	l.mu.Lock()
	data, err := l.safePath.ReadFile(l.config.FilePath)
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}

	var events []*AuditEvent
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var event AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			// A torn trailing line from a crashed writer is skipped,
			// not fatal.
			continue
		}

		if !matchesQuery(&event, query) {
			continue
		}

		events = append(events, &event)
		if query != nil && query.Limit > 0 && len(events) >= query.Limit {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning audit log: %w", err)
	}

	return events, nil
}

// Close implements AuditLogger.Close.
func (l *fileAuditLogger) Close() error {
	return nil
}

func (l *fileAuditLogger) shouldLog(event *AuditEvent) bool {
	switch l.config.Level {
	case AuditLogAll:
		return true
	case AuditLogFailures:
		return event.Outcome != "success"
	case AuditLogPolicyViolations:
		return event.Outcome == "policy_denied"
	default:
		return true
	}
}

func matchesQuery(event *AuditEvent, query *AuditQuery) bool {
	if query == nil {
		return true
	}
	if !query.Since.IsZero() && event.Timestamp.Before(query.Since) {
		return false
	}
	if !query.Until.IsZero() && event.Timestamp.After(query.Until) {
		return false
	}
	if query.Program != "" && event.Program != query.Program {
		return false
	}
	if query.Outcome != "" && event.Outcome != query.Outcome {
		return false
	}
	return true
}

// NewAuditEvent builds an audit event from an execution outcome. result
// is nil for every outcome other than a zero exit.
func NewAuditEvent(cmd *executor.Command, result *executor.Result, execErr error) *AuditEvent {
	event := &AuditEvent{
		Timestamp:  time.Now(),
		Program:    cmd.Program,
		Args:       cmd.Args,
		WorkingDir: cmd.WorkingDir,
		Outcome:    executor.Outcome(execErr),
		Metadata:   cmd.Metadata,
	}

	if result != nil {
		event.ID = result.CommandID
		event.Duration = result.Duration
	} else {
		event.ID = uuid.New().String()
	}

	if execErr != nil {
		event.Error = execErr.Error()

		var exitErr *executor.ExitError
		if errors.As(execErr, &exitErr) {
			event.ExitCode = exitErr.Code
		}

		var sigErr *executor.SignalError
		if errors.As(execErr, &sigErr) {
			event.Signal = sigErr.Signal
		}
	}

	return event
}

// ExecutionRecorder adapts an AuditLogger to the executor's audit
// contract. A failed audit write is logged and swallowed; it never
// fails the execution it describes.
type ExecutionRecorder struct {
	audit  AuditLogger
	logger logging.Logger
}

// NewExecutionRecorder creates a recorder feeding the given audit
// logger.
func NewExecutionRecorder(audit AuditLogger) *ExecutionRecorder {
	return &ExecutionRecorder{
		audit:  audit,
		logger: logging.GetLogger(),
	}
}

// LogExecution implements the executor's AuditLogger interface.
func (r *ExecutionRecorder) LogExecution(ctx context.Context, cmd *executor.Command, result *executor.Result, execErr error) {
	event := NewAuditEvent(cmd, result, execErr)
	if err := r.audit.Log(ctx, event); err != nil {
		r.logger.Warn("audit write failed",
			"program", cmd.Program,
			"outcome", event.Outcome,
			"error", err)
	}
}

// NoopAuditLogger returns an audit logger that discards everything.
func NoopAuditLogger() AuditLogger {
	return &noopAuditLogger{}
}

type noopAuditLogger struct{}

func (l *noopAuditLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }
func (l *noopAuditLogger) Query(ctx context.Context, query *AuditQuery) ([]*AuditEvent, error) {
	return nil, nil
}
func (l *noopAuditLogger) Close() error { return nil }
