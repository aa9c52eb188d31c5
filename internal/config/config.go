package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/hookwire/internal/config/loader"
	"github.com/dshills/hookwire/internal/hook/condition"
)

// DefaultFile is the config file read when none is given.
const DefaultFile = "hookwire.toml"

// Config is the decoded hookwire configuration.
type Config struct {
	// Env is the deployment environment exposed to environment conditions.
	Env string `toml:"env"`

	Log        LogConfig       `toml:"log"`
	Discovery  DiscoveryConfig `toml:"discovery"`
	Conditions ConditionConfig `toml:"conditions"`
	Auth       AuthConfig      `toml:"auth"`

	// Values is the free-form table read by config conditions.
	Values map[string]any `toml:"values"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// DiscoveryConfig configures hook discovery.
type DiscoveryConfig struct {
	Paths       []string `toml:"paths"`
	Watch       bool     `toml:"watch"`
	WatchDelay  string   `toml:"watch_delay"`
	Concurrency int      `toml:"concurrency"`
}

// ConditionConfig configures condition evaluation.
type ConditionConfig struct {
	Policy      string   `toml:"policy"`
	StrictHooks []string `toml:"strict_hooks"`
}

// AuthConfig configures the JWT authenticator used for auth and role
// conditions.
type AuthConfig struct {
	JWTSecret  string `toml:"jwt_secret"`
	Issuer     string `toml:"issuer"`
	RolesClaim string `toml:"roles_claim"`

	// Token is a bearer token describing the default caller.
	Token string `toml:"token"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Env: "production",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Discovery: DiscoveryConfig{
			Paths:      []string{"hooks"},
			WatchDelay: "250ms",
		},
		Conditions: ConditionConfig{
			Policy: "fail-open",
		},
		Auth: AuthConfig{
			RolesClaim: condition.DefaultRolesClaim,
		},
		Values: map[string]any{},
	}
}

// Option configures Load.
type Option func(*options)

type options struct {
	file    string
	envFile string
	prefix  string
	fs      loader.FileSystem
	environ map[string]string
}

// WithFile sets the TOML config file. A missing file is not an error.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithEnvFile sets the .env file. A missing file is not an error.
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
	}
}

// WithEnvPrefix replaces the HOOKWIRE_ environment prefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithFS reads the config file through fsys.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithEnviron reads variables from vars instead of the process environment.
func WithEnviron(vars map[string]string) Option {
	return func(o *options) {
		o.environ = vars
	}
}

// Load reads and merges every layer, then validates the result.
func Load(opts ...Option) (Config, error) {
	o := options{
		file:    DefaultFile,
		envFile: ".env",
		prefix:  loader.DefaultPrefix,
		fs:      loader.DefaultFS(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	base, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}

	env := loader.NewEnvLoader(o.prefix)
	if o.environ != nil {
		env = loader.NewEnvLoaderFromMap(o.prefix, o.environ)
	}
	layers := []loader.Loader{
		loader.NewTOMLLoaderWithFS(o.fs, o.file),
		loader.NewDotEnvLoader(o.prefix, o.envFile),
		env,
	}

	merged := base
	for _, l := range layers {
		m, err := l.Load()
		if err != nil {
			return Config{}, err
		}
		merged = loader.DeepMerge(merged, m)
	}

	cfg, err := fromMap(merged)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes a TOML document layered over the defaults, without
// reading files or the environment.
func Parse(data []byte) (Config, error) {
	base, err := toMap(Default())
	if err != nil {
		return Config{}, err
	}
	m, err := loader.Parse("<input>", data)
	if err != nil {
		return Config{}, err
	}
	cfg, err := fromMap(loader.DeepMerge(base, m))
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerated and typed fields.
func (c Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level))
	}
	if !slices.Contains([]string{"json", "console"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("%w: log.format %q must be json or console", ErrInvalidConfig, c.Log.Format))
	}
	if _, err := condition.ParsePolicy(c.Conditions.Policy); err != nil {
		errs = append(errs, fmt.Errorf("%w: conditions.policy %q", ErrInvalidConfig, c.Conditions.Policy))
	}
	if c.Discovery.WatchDelay != "" {
		if d, err := time.ParseDuration(c.Discovery.WatchDelay); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%w: discovery.watch_delay %q", ErrInvalidConfig, c.Discovery.WatchDelay))
		}
	}
	if c.Discovery.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: discovery.concurrency must not be negative", ErrInvalidConfig))
	}
	if c.Auth.Token != "" && c.Auth.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("%w: auth.token needs auth.jwt_secret", ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// Policy returns the parsed condition policy.
func (c Config) Policy() condition.Policy {
	p, _ := condition.ParsePolicy(c.Conditions.Policy)
	return p
}

// WatchDelay returns the parsed debounce delay, or zero.
func (c Config) WatchDelay() time.Duration {
	d, _ := time.ParseDuration(c.Discovery.WatchDelay)
	return d
}

// toMap converts a Config to the nested map form used for layering.
func toMap(c Config) (map[string]any, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return m, nil
}

// fromMap decodes the merged map into a Config.
func fromMap(m map[string]any) (Config, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("encoding merged config: %w", err)
	}
	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Values == nil {
		c.Values = map[string]any{}
	}
	return c, nil
}
