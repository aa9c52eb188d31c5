package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hookwire/internal/config"
	"github.com/dshills/hookwire/internal/hook/condition"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func load(t *testing.T, dir string, env map[string]string) (config.Config, error) {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	return config.Load(
		config.WithFile(filepath.Join(dir, "hookwire.toml")),
		config.WithEnvFile(filepath.Join(dir, ".env")),
		config.WithEnviron(env),
	)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, config.Default().Env, cfg.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"hooks"}, cfg.Discovery.Paths)
	assert.Equal(t, 250*time.Millisecond, cfg.WatchDelay())
	assert.Equal(t, condition.FailOpen, cfg.Policy())
	assert.Equal(t, condition.DefaultRolesClaim, cfg.Auth.RolesClaim)
	assert.NotNil(t, cfg.Values)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hookwire.toml", `
env = "staging"

[log]
level = "debug"
format = "json"

[discovery]
paths = ["a", "b"]
watch = true

[conditions]
policy = "fail-closed"
strict_hooks = ["billing.*"]

[values.features]
audit = true
beta = false
`)
	writeFile(t, dir, ".env", "HOOKWIRE_LOG_LEVEL=warn\nHOOKWIRE_VALUES_FEATURES__BETA=true\n")

	cfg, err := load(t, dir, map[string]string{
		"HOOKWIRE_ENV":          "testing",
		"HOOKWIRE_STRICT_HOOKS": "billing.*,auth.*",
		"UNRELATED":             "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "testing", cfg.Env, "environment beats file")
	assert.Equal(t, "warn", cfg.Log.Level, ".env beats file")
	assert.Equal(t, "json", cfg.Log.Format, "file beats defaults")
	assert.Equal(t, []string{"a", "b"}, cfg.Discovery.Paths)
	assert.True(t, cfg.Discovery.Watch)
	assert.Equal(t, condition.FailClosed, cfg.Policy())
	assert.Equal(t, []string{"billing.*", "auth.*"}, cfg.Conditions.StrictHooks)

	features, ok := cfg.Values["features"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, features["audit"])
	assert.Equal(t, true, features["beta"], "values merge key by key")
}

func TestLoad_DiscoveryPathsFromEnv(t *testing.T) {
	paths := "one" + string(filepath.ListSeparator) + "two"
	cfg, err := load(t, t.TempDir(), map[string]string{
		"HOOKWIRE_DISCOVERY_PATHS":       paths,
		"HOOKWIRE_WATCH":                 "yes",
		"HOOKWIRE_DISCOVERY_CONCURRENCY": "4",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, cfg.Discovery.Paths)
	assert.True(t, cfg.Discovery.Watch)
	assert.Equal(t, 4, cfg.Discovery.Concurrency)
}

func TestLoad_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hookwire.toml", "env = \n[log\n")

	_, err := load(t, dir, nil)

	var perr *config.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Path, "hookwire.toml")
	assert.Positive(t, perr.Line)
}

func TestLoad_BadEnvValue(t *testing.T) {
	_, err := load(t, t.TempDir(), map[string]string{"HOOKWIRE_WATCH": "sometimes"})
	var perr *config.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "HOOKWIRE_WATCH", perr.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"level", func(c *config.Config) { c.Log.Level = "loud" }},
		{"format", func(c *config.Config) { c.Log.Format = "xml" }},
		{"policy", func(c *config.Config) { c.Conditions.Policy = "maybe" }},
		{"delay", func(c *config.Config) { c.Discovery.WatchDelay = "soon" }},
		{"concurrency", func(c *config.Config) { c.Discovery.Concurrency = -1 }},
		{"token", func(c *config.Config) { c.Auth.Token = "abc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}

	assert.NoError(t, config.Default().Validate())
}

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
[values]
region = "eu"
`))
	require.NoError(t, err)
	assert.Equal(t, "eu", cfg.Values["region"])
	assert.Equal(t, "info", cfg.Log.Level)

	_, err = config.Parse([]byte(`[log]
format = "xml"`))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
