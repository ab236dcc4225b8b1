// Package config provides configuration management for guardexec.
package config

import (
	"time"

	"github.com/guardexec/guardexec/observability"
)

// Config is the main configuration for guardexec.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Policy    PolicySource    `mapstructure:"policy"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	// Level is one of debug, verbose, info, warn, error.
	Level string `mapstructure:"level"`
}

// PolicySource locates the execution policy file.
type PolicySource struct {
	// BasePath is the directory policy reads are confined to.
	BasePath string `mapstructure:"base_path"`

	// File is the policy file path relative to BasePath.
	File string `mapstructure:"file"`

	// Watch enables polling the policy file for changes.
	Watch bool `mapstructure:"watch"`

	// WatchInterval is the polling interval.
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Level is one of all, failures, policy_violations.
	Level string `mapstructure:"level"`

	// BasePath is the directory audit writes are confined to.
	BasePath string `mapstructure:"base_path"`

	// File is the audit log path relative to BasePath.
	File string `mapstructure:"file"`

	// Enabled turns the audit trail on.
	Enabled bool `mapstructure:"enabled"`
}

// Observability converts to the observability package's audit
// configuration.
func (c AuditConfig) Observability() observability.AuditConfig {
	return observability.AuditConfig{
		Enabled:  c.Enabled,
		Level:    observability.AuditLogLevel(c.Level),
		BasePath: c.BasePath,
		FilePath: c.File,
	}
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	MetricsPrefix  string `mapstructure:"metrics_prefix"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
}

// Observability converts to the observability package's telemetry
// configuration.
func (c TelemetryConfig) Observability() observability.TelemetryConfig {
	return observability.TelemetryConfig{
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Environment:    c.Environment,
		MetricsPrefix:  c.MetricsPrefix,
		EnableTracing:  c.EnableTracing,
		EnableMetrics:  c.EnableMetrics,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Policy: PolicySource{
			BasePath:      "/etc/guardexec",
			File:          "policy.yaml",
			Watch:         false,
			WatchInterval: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:  true,
			Level:    "all",
			BasePath: "/var/log",
			File:     "guardexec/audit.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "guardexec",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			MetricsPrefix:  "guardexec_",
			EnableTracing:  true,
			EnableMetrics:  true,
		},
	}
}

// DevelopmentConfig returns configuration suitable for development:
// verbose diagnostics, relative paths, hot policy reload.
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Policy.BasePath = "."
	cfg.Policy.Watch = true
	cfg.Policy.WatchInterval = 5 * time.Second
	cfg.Audit.BasePath = "."
	cfg.Audit.File = "audit.log"
	return cfg
}

// ProductionConfig returns configuration suitable for production.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "info"
	cfg.Telemetry.Environment = "production"
	cfg.Audit.Level = "all"
	return cfg
}

// Validate normalizes the configuration, replacing out-of-range values
// with defaults.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "verbose", "info", "warn", "error":
	default:
		c.Logging.Level = "info"
	}

	switch c.Audit.Level {
	case "all", "failures", "policy_violations":
	default:
		c.Audit.Level = "all"
	}

	if c.Policy.File == "" {
		c.Policy.File = "policy.yaml"
	}

	if c.Policy.WatchInterval <= 0 {
		c.Policy.WatchInterval = 30 * time.Second
	}

	return nil
}
