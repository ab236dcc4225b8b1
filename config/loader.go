package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "guardexec"
	configType = "yaml"
	envPrefix  = "GUARDEXEC"
)

// searchPaths are the directories scanned for a guardexec.yaml, in
// order.
var searchPaths = []string{
	".",
	"$HOME/.config/guardexec",
	"/etc/guardexec",
}

// Loader resolves configuration from files, environment variables and
// defaults. Precedence, highest first: environment, file, defaults.
// Environment keys use the GUARDEXEC prefix with underscores, so
// logging.level becomes GUARDEXEC_LOGGING_LEVEL.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)

	for _, path := range searchPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a registered default for environment overrides
	// to resolve during Unmarshal.
	for key, value := range defaultValues() {
		v.SetDefault(key, value)
	}

	return &Loader{v: v}
}

// Load resolves the configuration. configFile, when non-empty, names an
// exact file to read instead of searching; a missing file from the
// search path is not an error, a missing explicit file is.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile != "" {
		l.v.SetConfigFile(configFile)
	}

	if err := l.v.MergeInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || configFile != "" {
			return nil, fmt.Errorf("reading configuration: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path of the file the last Load read, or
// empty when configuration came from defaults and environment alone.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// defaultValues flattens DefaultConfig into viper keys.
func defaultValues() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"logging.level":             d.Logging.Level,
		"policy.base_path":          d.Policy.BasePath,
		"policy.file":               d.Policy.File,
		"policy.watch":              d.Policy.Watch,
		"policy.watch_interval":     d.Policy.WatchInterval,
		"audit.enabled":             d.Audit.Enabled,
		"audit.level":               d.Audit.Level,
		"audit.base_path":           d.Audit.BasePath,
		"audit.file":                d.Audit.File,
		"telemetry.service_name":    d.Telemetry.ServiceName,
		"telemetry.service_version": d.Telemetry.ServiceVersion,
		"telemetry.environment":     d.Telemetry.Environment,
		"telemetry.metrics_prefix":  d.Telemetry.MetricsPrefix,
		"telemetry.enable_tracing":  d.Telemetry.EnableTracing,
		"telemetry.enable_metrics":  d.Telemetry.EnableMetrics,
	}
}
