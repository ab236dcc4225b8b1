// Package guardexec provides a secure subprocess invocation library.
//
// GuardExec centralizes all process invocation behind a minimal API,
// banning direct os/exec usage elsewhere. Commands travel as argument
// vectors and never pass through a shell, so metacharacters in
// untrusted input have no interpreter to reach. Allow-list validators
// decide what may run; quoting and escaping are fallback layers, not
// the defense.
//
// # Key Features
//
//   - Single execution abstraction: no shell, explicit argument vectors
//   - Injection-resistant validators for refs, paths, programs,
//     arguments and environment
//   - Closed failure taxonomy: spawn failures, non-zero exits, signals
//     and policy denials are distinct, matchable errors
//   - Policy-as-code via YAML for auditable per-program rules
//   - Append-only audit trail and OpenTelemetry integration
//   - Diagnostic logs carry programs and argument counts, never
//     argument content
//
// # Basic Usage
//
//	exec, err := guardexec.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cmd, _ := guardexec.Cmd("/usr/bin/git", "status").Build()
//	result, err := exec.Execute(ctx, cmd)
//
// # With Security Policy
//
//	loader, _ := guardexec.LoadPolicy("/etc/guardexec", "policy.yaml")
//	pol, _ := loader.Load(ctx)
//
//	exec, _ := guardexec.NewBuilder().
//	    WithPolicy(pol).
//	    Build()
//
// # Security Model
//
// Input crosses a validation boundary exactly once. Refs and paths are
// checked against closed character alphabets; programs resolve against
// prefix allow-lists; policies add per-program argument, environment
// and working-directory rules. Whatever passes runs as a plain vector
// with its environment assembled explicitly.
//
// # File I/O
//
// Policy and audit file operations use
// github.com/victoralfred/gowritter/safepath, confining reads and
// writes to their configured base directories.
//
// # Package Structure
//
//   - guardexec: Main entry point and convenience functions
//   - executor: Core Executor interface and implementation
//   - validation: Ref, path, program, argument and environment checks
//   - shellquote: Fallback single-word escaping for shell contexts
//   - policy: YAML policy loading and validation
//   - logging: Leveled logger facade
//   - observability: Audit trail, OpenTelemetry metrics and tracing
//   - hooks: Extension points for custom behavior
//   - config: Configuration management
package guardexec
