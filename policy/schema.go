package policy

// Config is the root of the YAML policy document.
type Config struct {
	Metadata Metadata        `yaml:"metadata"`
	Version  string          `yaml:"version"`
	Programs []ProgramConfig `yaml:"programs"`
	Global   GlobalConfig    `yaml:"global"`
}

// Metadata describes the policy document.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Created     string `yaml:"created"`
	Updated     string `yaml:"updated"`
}

// GlobalConfig holds settings applied to every program unless the
// program entry overrides them.
type GlobalConfig struct {
	// AllowedEnv are environment variables programs may receive.
	// Supports wildcards; empty means no global restriction.
	AllowedEnv []string `yaml:"allowed_env"`

	// DeniedEnv are environment variables programs may never receive.
	// Denials apply in addition to any per-program list.
	DeniedEnv []string `yaml:"denied_env"`
}

// ProgramConfig is the policy entry for one program. Name is matched
// verbatim against the command's program, so an entry for
// "/usr/bin/git" does not cover "git" and vice versa.
type ProgramConfig struct {
	Name            string       `yaml:"name"`
	AllowedArgs     []ArgPattern `yaml:"allowed_args"`
	DeniedArgs      []ArgPattern `yaml:"denied_args"`
	AllowedEnv      []string     `yaml:"allowed_env"`
	DeniedEnv       []string     `yaml:"denied_env"`
	AllowedWorkdirs []string     `yaml:"allowed_workdirs"`
	Enabled         bool         `yaml:"enabled"`
	RequireAudit    bool         `yaml:"require_audit"`
}
