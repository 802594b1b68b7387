package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "dealdesk.db", cfg.Store.SQLitePath)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 10.0, cfg.Server.RatePerSec, 0.001)
	assert.Equal(t, 20, cfg.Server.RateBurst)
	assert.Equal(t, "authenticated", cfg.Auth.Audience)
	assert.Equal(t, int64(2000), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "https://www.alphavantage.co", cfg.AlphaVantage.BaseURL)
	assert.Equal(t, 5, cfg.AlphaVantage.RatePerMin)
	assert.Equal(t, 3, cfg.Research.MaxUses)
	assert.Equal(t, 60, cfg.Research.CacheTTLMinutes)
	assert.Equal(t, 5, cfg.Research.NewsLimit)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 0.25, cfg.Retry.JitterFraction, 0.001)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: /tmp/deals.db
server:
  port: 9090
  allowed_origins:
    - https://app.example.com
research:
  max_uses: 10
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/deals.db", cfg.Store.SQLitePath)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Research.MaxUses)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DEALDESK_STORE_DRIVER", "postgres")
	t.Setenv("DEALDESK_LOG_LEVEL", "warn")
	t.Setenv("DEALDESK_AUTH_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadExplicitPath(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "staging.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Driver)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

func validServe() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/dealdesk"
	cfg.Server.Port = 8080
	cfg.Auth.JWTSecret = "secret"
	cfg.Anthropic.Key = "sk-ant"
	cfg.AlphaVantage.Key = "av"
	cfg.Research.MaxUses = 3
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{"serve ok", "serve", func(*Config) {}, ""},
		{"bad port", "serve", func(c *Config) { c.Server.Port = 0 }, "server.port must be > 0"},
		{"no secret", "serve", func(c *Config) { c.Auth.JWTSecret = "" }, "auth.jwt_secret is required"},
		{"no anthropic key", "research", func(c *Config) { c.Anthropic.Key = "" }, "anthropic.key is required"},
		{"no alphavantage key", "research", func(c *Config) { c.AlphaVantage.Key = "" }, "alphavantage.key is required"},
		{"serve without research keys", "serve", func(c *Config) { c.Anthropic.Key = ""; c.AlphaVantage.Key = "" }, ""},
		{"no quota", "research", func(c *Config) { c.Research.MaxUses = 0 }, "research.max_uses must be >= 1"},
		{"no database url", "migrate", func(c *Config) { c.Store.DatabaseURL = "" }, "store.database_url is required"},
		{"model without database", "model", func(c *Config) { c.Store.DatabaseURL = "" }, ""},
		{"sqlite", "migrate", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.SQLitePath = "x.db" }, ""},
		{"bad driver", "migrate", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver must be postgres or sqlite"},
		{"unknown mode", "bogus", func(*Config) {}, "unknown mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validServe()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validServe()
	cfg.Server.Port = -1
	cfg.Auth.JWTSecret = ""
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}
