package policy

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/victoralfred/gowritter/safepath"
	"gopkg.in/yaml.v3"

	"github.com/guardexec/guardexec/logging"
)

// Loader loads and manages policies from YAML files.
type Loader struct {
	path       string
	safePath   *safepath.SafePath
	policy     *CompiledPolicy
	mu         sync.RWMutex
	lastHash   []byte
	lastLoad   time.Time
	validators []PolicyValidator
	onChange   []func(*CompiledPolicy)
	watchStop  chan struct{}
}

// PolicyValidator validates a policy configuration before it is
// compiled.
type PolicyValidator interface {
	Validate(config *Config) error
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithValidator adds a policy validator.
func WithValidator(v PolicyValidator) LoaderOption {
	return func(l *Loader) {
		l.validators = append(l.validators, v)
	}
}

// WithOnChange adds a callback for policy changes.
func WithOnChange(fn func(*CompiledPolicy)) LoaderOption {
	return func(l *Loader) {
		l.onChange = append(l.onChange, fn)
	}
}

// NewLoader creates a new policy loader. policyFile is resolved inside
// basePath; the loader never reads outside it.
func NewLoader(basePath, policyFile string, opts ...LoaderOption) (*Loader, error) {
	sp, err := safepath.New(basePath)
	if err != nil {
		return nil, fmt.Errorf("creating safe path: %w", err)
	}

	l := &Loader{
		path:       policyFile,
		safePath:   sp,
		validators: make([]PolicyValidator, 0),
		onChange:   make([]func(*CompiledPolicy), 0),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l, nil
}

// Load loads the policy from the file. Unchanged content returns the
// already compiled policy.
func (l *Loader) Load(ctx context.Context) (*CompiledPolicy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.safePath.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	// Check if file changed
	hash := sha256.Sum256(data)
	if l.policy != nil && string(hash[:]) == string(l.lastHash) {
		return l.policy, nil
	}

	// Parse YAML
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	// Validate policy
	for _, v := range l.validators {
		if err := v.Validate(&config); err != nil {
			return nil, fmt.Errorf("policy validation failed: %w", err)
		}
	}

	// Compile policy
	compiled, err := NewCompiledPolicy(&config)
	if err != nil {
		return nil, fmt.Errorf("compiling policy: %w", err)
	}

	compiled.hash = fmt.Sprintf("%x", hash)

	l.policy = compiled
	l.lastHash = hash[:]
	l.lastLoad = time.Now()

	// Notify listeners
	for _, fn := range l.onChange {
		fn(compiled)
	}

	return compiled, nil
}

// Get returns the current policy without reloading.
func (l *Loader) Get() *CompiledPolicy {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.policy
}

// Reload reloads the policy from the file.
func (l *Loader) Reload(ctx context.Context) error {
	_, err := l.Load(ctx)
	return err
}

// Watch polls the policy file at the given interval and swaps in changed
// policies. A load failure keeps the previous policy and the watch
// alive.
func (l *Loader) Watch(ctx context.Context, interval time.Duration) {
	l.watchStop = make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.watchStop:
				return
			case <-ticker.C:
				if _, err := l.Load(ctx); err != nil {
					logging.GetLogger().Warn("policy reload failed",
						"file", l.path,
						"error", err)
				}
			}
		}
	}()
}

// StopWatch stops watching for policy changes.
func (l *Loader) StopWatch() {
	if l.watchStop != nil {
		close(l.watchStop)
	}
}

// ParseYAML parses a YAML policy configuration.
func ParseYAML(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// DefaultPolicyValidator validates policy configuration.
type DefaultPolicyValidator struct{}

// Validate validates the policy configuration.
func (v *DefaultPolicyValidator) Validate(config *Config) error {
	if config.Version == "" {
		return fmt.Errorf("policy version is required")
	}

	for i, p := range config.Programs {
		if p.Name == "" {
			return fmt.Errorf("program %d: name is required", i)
		}

		for j, ap := range p.AllowedArgs {
			if ap.Pattern == "" {
				return fmt.Errorf("program %d, allowed_arg %d: pattern is required", i, j)
			}
		}

		for j, dp := range p.DeniedArgs {
			if dp.Pattern == "" {
				return fmt.Errorf("program %d, denied_arg %d: pattern is required", i, j)
			}
		}
	}

	return nil
}

// ExamplePolicy returns an example policy configuration.
func ExamplePolicy() *Config {
	return &Config{
		Version: "1.0",
		Metadata: Metadata{
			Name:        "example-policy",
			Description: "Example execution policy",
		},
		Global: GlobalConfig{
			AllowedEnv: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL"},
			DeniedEnv:  []string{"*_SECRET*", "*_PASSWORD*", "AWS_*"},
		},
		Programs: []ProgramConfig{
			{
				Name:    "/usr/bin/git",
				Enabled: true,
				AllowedArgs: []ArgPattern{
					{Pattern: "^(status|log|diff|branch|show)$", Position: 0, Description: "Read-only subcommands"},
					{Pattern: "^--.*$", Position: -1, Description: "Long-form flags"},
					{Pattern: "^-[a-zA-Z]$", Position: -1, Description: "Short flags"},
				},
				DeniedArgs: []ArgPattern{
					{Pattern: "^--exec", Position: -1, Description: "No arbitrary execution"},
					{Pattern: "^--upload-pack", Position: -1, Description: "No transport overrides"},
				},
				AllowedWorkdirs: []string{"/home/*", "/tmp/*"},
				RequireAudit:    true,
			},
			{
				Name:    "/bin/ls",
				Enabled: true,
				AllowedArgs: []ArgPattern{
					{Pattern: "^-[alh1]+$", Position: -1, Description: "Common flags"},
					{Pattern: "^/[a-zA-Z0-9_/.-]+$", Position: -1, Description: "Absolute paths"},
				},
			},
		},
	}
}
