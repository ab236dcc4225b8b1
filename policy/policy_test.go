package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/guardexec/guardexec/executor"
)

// The compiled policy must satisfy the executor's policy contract.
var _ executor.Policy = (*CompiledPolicy)(nil)

func gitConfig() *Config {
	return &Config{
		Version: "1.0",
		Global: GlobalConfig{
			DeniedEnv: []string{"AWS_*", "*_SECRET*"},
		},
		Programs: []ProgramConfig{
			{
				Name:    "/usr/bin/git",
				Enabled: true,
				AllowedArgs: []ArgPattern{
					{Pattern: "^(status|log|diff)$", Position: 0, Description: "Read-only subcommands"},
					{Pattern: "^--[a-z-]+$", Position: -1, Description: "Long flags"},
				},
				DeniedArgs: []ArgPattern{
					{Pattern: "^--exec", Position: -1, Description: "No arbitrary execution"},
				},
				AllowedEnv:      []string{"GIT_*"},
				AllowedWorkdirs: []string{"/home/*", "/tmp"},
				RequireAudit:    true,
			},
			{
				Name:    "/bin/true",
				Enabled: false,
			},
		},
	}
}

func compile(t *testing.T, config *Config) *CompiledPolicy {
	t.Helper()
	cp, err := NewCompiledPolicy(config)
	if err != nil {
		t.Fatalf("NewCompiledPolicy failed: %v", err)
	}
	return cp
}

func TestNewCompiledPolicy_InvalidPattern(t *testing.T) {
	config := &Config{
		Version: "1.0",
		Programs: []ProgramConfig{
			{
				Name:        "/usr/bin/git",
				Enabled:     true,
				AllowedArgs: []ArgPattern{{Pattern: "([unclosed", Position: -1}},
			},
		},
	}

	if _, err := NewCompiledPolicy(config); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestCompiledPolicy_Validate_AllowedCommand(t *testing.T) {
	cp := compile(t, gitConfig())

	cmd := &executor.Command{
		Program: "/usr/bin/git",
		Args:    []string{"status", "--porcelain"},
	}

	result, err := cp.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected allowed, got violations: %+v", result.Violations)
	}
}

func TestCompiledPolicy_Validate_UnlistedProgram(t *testing.T) {
	cp := compile(t, gitConfig())

	cmd := &executor.Command{Program: "/usr/bin/curl"}
	result, err := cp.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if result.Allowed {
		t.Fatal("Expected denial for unlisted program")
	}
	if len(result.Violations) != 1 || result.Violations[0].Code != "program_not_listed" {
		t.Errorf("Expected program_not_listed violation, got %+v", result.Violations)
	}
}

func TestCompiledPolicy_Validate_DisabledProgram(t *testing.T) {
	cp := compile(t, gitConfig())

	cmd := &executor.Command{Program: "/bin/true"}
	result, err := cp.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if result.Allowed {
		t.Fatal("Expected denial for disabled program")
	}
	if result.Violations[0].Code != "program_disabled" {
		t.Errorf("Expected program_disabled violation, got %+v", result.Violations)
	}
}

func TestCompiledPolicy_Validate_DeniedArgument(t *testing.T) {
	cp := compile(t, gitConfig())

	cmd := &executor.Command{
		Program: "/usr/bin/git",
		Args:    []string{"status", "--exec"},
	}

	result, err := cp.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if result.Allowed {
		t.Fatal("Expected denial for denied argument")
	}

	found := false
	for _, v := range result.Violations {
		if v.Code == "argument_denied" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected argument_denied violation, got %+v", result.Violations)
	}
}

func TestCompiledPolicy_Validate_UnmatchedArgument(t *testing.T) {
	cp := compile(t, gitConfig())

	cmd := &executor.Command{
		Program: "/usr/bin/git",
		Args:    []string{"status", "secret-payload-xyz"},
	}

	result, err := cp.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if result.Allowed {
		t.Fatal("Expected denial for unmatched argument")
	}
	if result.Violations[0].Code != "argument_unmatched" {
		t.Errorf("Expected argument_unmatched violation, got %+v", result.Violations)
	}

	// Violation messages carry positions, never argument content.
	for _, v := range result.Violations {
		if strings.Contains(v.Message, "secret-payload-xyz") {
			t.Errorf("Violation message leaks argument content: %q", v.Message)
		}
	}
}

func TestCompiledPolicy_Validate_PositionEnforced(t *testing.T) {
	cp := compile(t, gitConfig())

	// "status" is only allowed at position 0.
	cmd := &executor.Command{
		Program: "/usr/bin/git",
		Args:    []string{"--verbose", "status"},
	}

	result, err := cp.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Allowed {
		t.Error("Expected denial for subcommand out of position")
	}
}

func TestCompiledPolicy_Validate_RequiredPattern(t *testing.T) {
	config := &Config{
		Version: "1.0",
		Programs: []ProgramConfig{
			{
				Name:    "/usr/bin/rsync",
				Enabled: true,
				AllowedArgs: []ArgPattern{
					{Pattern: "^--dry-run$", Position: -1, Description: "dry-run flag", Required: true},
					{Pattern: "^[a-z/]+$", Position: -1, Description: "paths"},
				},
			},
		},
	}
	cp := compile(t, config)

	missing := &executor.Command{Program: "/usr/bin/rsync", Args: []string{"/src"}}
	result, err := cp.Validate(context.Background(), missing)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Allowed {
		t.Error("Expected denial when required pattern missing")
	}

	present := &executor.Command{Program: "/usr/bin/rsync", Args: []string{"--dry-run", "/src"}}
	result, err = cp.Validate(context.Background(), present)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected allowed, got violations: %+v", result.Violations)
	}
}

func TestCompiledPolicy_Validate_Environment(t *testing.T) {
	cp := compile(t, gitConfig())

	tests := []struct {
		name     string
		env      map[string]string
		wantCode string
	}{
		{"program allowlist passes", map[string]string{"GIT_TRACE": "1"}, ""},
		{"global denial wins", map[string]string{"AWS_REGION": "eu-west-1"}, "env_denied"},
		{"secret denial wins", map[string]string{"API_SECRET_KEY": "x"}, "env_denied"},
		{"outside program allowlist", map[string]string{"EDITOR": "vi"}, "env_not_listed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &executor.Command{
				Program: "/usr/bin/git",
				Args:    []string{"status"},
				Env:     tt.env,
			}
			result, err := cp.Validate(context.Background(), cmd)
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if tt.wantCode == "" {
				if !result.Allowed {
					t.Errorf("Expected allowed, got %+v", result.Violations)
				}
				return
			}
			if result.Allowed {
				t.Fatal("Expected denial")
			}
			if result.Violations[0].Code != tt.wantCode {
				t.Errorf("Expected %s, got %+v", tt.wantCode, result.Violations)
			}
		})
	}
}

func TestCompiledPolicy_Validate_Workdir(t *testing.T) {
	cp := compile(t, gitConfig())

	allowed := &executor.Command{
		Program:    "/usr/bin/git",
		Args:       []string{"status"},
		WorkingDir: "/home/dev/project",
	}
	result, err := cp.Validate(context.Background(), allowed)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected workdir to match wildcard, got %+v", result.Violations)
	}

	denied := &executor.Command{
		Program:    "/usr/bin/git",
		Args:       []string{"status"},
		WorkingDir: "/var/lib/private",
	}
	result, err = cp.Validate(context.Background(), denied)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected denial for workdir outside allowlist")
	}
	if result.Violations[0].Code != "workdir_not_allowed" {
		t.Errorf("Expected workdir_not_allowed, got %+v", result.Violations)
	}
}

func TestCompiledPolicy_GetProgramPolicy(t *testing.T) {
	cp := compile(t, gitConfig())

	pp, err := cp.GetProgramPolicy("/usr/bin/git")
	if err != nil {
		t.Fatalf("GetProgramPolicy failed: %v", err)
	}
	if pp.Name != "/usr/bin/git" || !pp.Enabled {
		t.Errorf("Unexpected program policy: %+v", pp)
	}

	if _, err := cp.GetProgramPolicy("/usr/bin/curl"); err == nil {
		t.Error("Expected error for unlisted program")
	}
}

func TestCompiledPolicy_RequiresAudit(t *testing.T) {
	cp := compile(t, gitConfig())

	if !cp.RequiresAudit("/usr/bin/git") {
		t.Error("Expected audit requirement for /usr/bin/git")
	}
	if cp.RequiresAudit("/bin/true") {
		t.Error("Expected no audit requirement for /bin/true")
	}
	if cp.RequiresAudit("/usr/bin/curl") {
		t.Error("Expected no audit requirement for unlisted program")
	}
}

func TestCompiledPolicy_Version(t *testing.T) {
	cp := compile(t, gitConfig())
	if cp.Version() != "1.0" {
		t.Errorf("Expected version 1.0, got %s", cp.Version())
	}
}

func TestPermissivePolicy(t *testing.T) {
	p := PermissivePolicy()

	cmd := &executor.Command{
		Program: "/anything/at/all",
		Args:    []string{"--whatever; rm -rf /"},
	}
	result, err := p.Validate(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Allowed {
		t.Error("Permissive policy should allow everything")
	}
}

func TestMatchesWildcard(t *testing.T) {
	tests := []struct {
		s       string
		pattern string
		want    bool
	}{
		{"anything", "*", true},
		{"PATH", "PATH", true},
		{"PATH2", "PATH", false},
		{"GIT_TRACE", "GIT_*", true},
		{"GIT", "GIT_*", false},
		{"/home/dev/x", "/home/*", true},
		{"/var/home", "/home/*", false},
		{"MY_SECRET_V", "*_SECRET*", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.s, func(t *testing.T) {
			if got := matchesWildcard(tt.s, tt.pattern); got != tt.want {
				t.Errorf("matchesWildcard(%q, %q) = %v, want %v", tt.s, tt.pattern, got, tt.want)
			}
		})
	}
}
