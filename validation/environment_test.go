package validation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/guardexec/guardexec/executor"
)

func TestEnvironmentValidator_Validate_Defaults(t *testing.T) {
	validator := NewEnvironmentValidator(nil)

	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"no overrides", nil, false},
		{"allowed vars", map[string]string{"PATH": "/usr/bin", "HOME": "/home/dev"}, false},
		{"locale wildcard", map[string]string{"LC_ALL": "C.UTF-8"}, false},
		{"unlisted var", map[string]string{"EDITOR": "vi"}, true},
		{"denied cloud", map[string]string{"AWS_ACCESS_KEY_ID": "AKIA123"}, true},
		{"denied loader", map[string]string{"LD_PRELOAD": "/tmp/evil.so"}, true},
		{"denied secret", map[string]string{"APP_SECRET_FOO": "x"}, true},
		{"empty value", map[string]string{"PATH": ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &executor.Command{Program: "/bin/echo", Env: tt.env}
			err := validator.Validate(context.Background(), cmd)
			if tt.wantErr {
				if !errors.Is(err, ErrEnvRejected) {
					t.Errorf("Expected ErrEnvRejected, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestEnvironmentValidator_Validate_TooManyVars(t *testing.T) {
	validator := NewEnvironmentValidator(&EnvironmentValidatorConfig{
		MaxVars:        2,
		MaxKeyLength:   256,
		MaxValueLength: 8192,
		AllowEmpty:     true,
	})

	cmd := &executor.Command{
		Program: "/bin/echo",
		Env: map[string]string{
			"A": "1",
			"B": "2",
			"C": "3",
		},
	}

	err := validator.Validate(context.Background(), cmd)
	if !errors.Is(err, ErrEnvRejected) {
		t.Errorf("Expected ErrEnvRejected for too many vars, got %v", err)
	}
}

func TestEnvironmentValidator_Validate_InvalidKey(t *testing.T) {
	validator := NewEnvironmentValidator(&EnvironmentValidatorConfig{
		MaxVars:        50,
		MaxKeyLength:   256,
		MaxValueLength: 8192,
	})

	testCases := []string{
		"9LEADING_DIGIT",
		"WITH-DASH",
		"WITH SPACE",
		"WITH=EQUALS",
	}

	for _, key := range testCases {
		cmd := &executor.Command{
			Program: "/bin/echo",
			Env:     map[string]string{key: "value"},
		}

		err := validator.Validate(context.Background(), cmd)
		if !errors.Is(err, ErrEnvRejected) {
			t.Errorf("Expected ErrEnvRejected for key '%s', got %v", key, err)
		}
	}
}

func TestEnvironmentValidator_Validate_ValueLimits(t *testing.T) {
	validator := NewEnvironmentValidator(&EnvironmentValidatorConfig{
		MaxVars:        50,
		MaxKeyLength:   8,
		MaxValueLength: 8,
	})

	longKey := &executor.Command{
		Program: "/bin/echo",
		Env:     map[string]string{"TOO_LONG_KEY": "v"},
	}
	if err := validator.Validate(context.Background(), longKey); err == nil {
		t.Error("Expected error for long key")
	}

	longValue := &executor.Command{
		Program: "/bin/echo",
		Env:     map[string]string{"SHORT": strings.Repeat("v", 9)},
	}
	if err := validator.Validate(context.Background(), longValue); err == nil {
		t.Error("Expected error for long value")
	}
}

func TestEnvironmentValidator_Validate_NullByteValue(t *testing.T) {
	validator := NewEnvironmentValidator(&EnvironmentValidatorConfig{
		MaxVars:        50,
		MaxKeyLength:   256,
		MaxValueLength: 8192,
	})

	cmd := &executor.Command{
		Program: "/bin/echo",
		Env:     map[string]string{"SNEAKY": "a\x00b"},
	}

	err := validator.Validate(context.Background(), cmd)
	if !errors.Is(err, ErrEnvRejected) {
		t.Errorf("Expected ErrEnvRejected for null byte value, got %v", err)
	}
}

// Rejection messages name the key, never the value.
func TestEnvironmentValidator_Validate_MessageOmitsValue(t *testing.T) {
	validator := NewEnvironmentValidator(nil)

	cmd := &executor.Command{
		Program: "/bin/echo",
		Env:     map[string]string{"DB_PASSWORD_MAIN": "p4ssw0rd-value"},
	}

	err := validator.Validate(context.Background(), cmd)
	if err == nil {
		t.Fatal("Expected error")
	}
	if strings.Contains(err.Error(), "p4ssw0rd-value") {
		t.Errorf("Error message leaks variable value: %v", err)
	}
}

func TestEnvironmentValidator_Name(t *testing.T) {
	validator := NewEnvironmentValidator(nil)
	if validator.Name() != "environment_validator" {
		t.Errorf("Expected name 'environment_validator', got '%s'", validator.Name())
	}
}

func TestEnvironmentValidator_Priority(t *testing.T) {
	validator := NewEnvironmentValidator(nil)
	if validator.Priority() != 30 {
		t.Errorf("Expected priority 30, got %d", validator.Priority())
	}
}

func TestWildcardToRegexp(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"PATH", "PATH", true},
		{"PATH", "XPATH", false},
		{"LC_*", "LC_ALL", true},
		{"LC_*", "LC", false},
		{"*_TOKEN*", "MY_TOKEN_X", true},
		{"*_TOKEN*", "TOKEN", false},
		{"AWS_*", "AWS_REGION", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.input, func(t *testing.T) {
			re := wildcardToRegexp(tt.pattern)
			if re == nil {
				t.Fatalf("wildcardToRegexp(%q) = nil", tt.pattern)
			}
			if got := re.MatchString(tt.input); got != tt.want {
				t.Errorf("pattern %q against %q = %v, want %v", tt.pattern, tt.input, got, tt.want)
			}
		})
	}
}

func TestFilterEnvironment(t *testing.T) {
	env := map[string]string{
		"PATH":        "/usr/bin",
		"HOME":        "/home/dev",
		"AWS_REGION":  "eu-west-1",
		"APP_SECRET":  "x",
		"LC_COLLATE":  "C",
		"UNRELATED_X": "y",
	}

	t.Run("deny wins over allow", func(t *testing.T) {
		got := FilterEnvironment(env, []string{"*"}, []string{"AWS_*", "*_SECRET"})
		if _, ok := got["AWS_REGION"]; ok {
			t.Error("AWS_REGION should be filtered out")
		}
		if _, ok := got["APP_SECRET"]; ok {
			t.Error("APP_SECRET should be filtered out")
		}
		if _, ok := got["PATH"]; !ok {
			t.Error("PATH should survive")
		}
	})

	t.Run("allowlist restricts", func(t *testing.T) {
		got := FilterEnvironment(env, []string{"PATH", "LC_*"}, nil)
		if len(got) != 2 {
			t.Errorf("Expected 2 vars, got %d: %v", len(got), got)
		}
	})

	t.Run("empty lists pass everything", func(t *testing.T) {
		got := FilterEnvironment(env, nil, nil)
		if len(got) != len(env) {
			t.Errorf("Expected %d vars, got %d", len(env), len(got))
		}
	})
}
