package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(oldWd)

	res, err := NewLoader().WithDotEnv(false).Load()
	require.NoError(t, err)

	assert.Equal(t, "default", res.Path)
	assert.Equal(t, 8080, res.Config.Server.Port)
	assert.Equal(t, 10*time.Second, res.Config.Fetch.Timeout)
	assert.Equal(t, int64(5*1024*1024), res.Config.Fetch.MaxBytes)
	assert.Equal(t, []string{"https://yourfrontend.com"}, res.Config.HTTP.CORS.AllowOrigins)
	assert.True(t, res.Config.SSRF.BlockReserved)
	assert.Equal(t, 1, res.Config.Caption.MaxConcurrency)
	assert.False(t, res.Config.Journal.Enabled, "journal is opt-in")
	assert.False(t, res.Config.Journal.RecordContent)
}

func TestLoader_LoadFileAndEnv(t *testing.T) {
	// 创建临时配置文件
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "caption.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 9090
log:
  log_level: "debug"
fetch:
  timeout: 3s
caption:
  provider: static
  static:
    caption: "a red square"
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	t.Setenv("CAPTION_SERVER_PORT", "9191")
	t.Setenv("CAPTION_HTTP_CORS_ALLOW_ORIGINS", "http://localhost:3000,https://app.example.com")

	res, err := NewLoader().WithDotEnv(false).WithPath(configFile).Load()
	require.NoError(t, err)

	cfg := res.Config
	assert.Equal(t, configFile, res.Path)
	assert.Equal(t, "127.0.0.1", cfg.Server.IP)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "static", cfg.Caption.Provider)
	assert.Equal(t, "a red square", cfg.Caption.Static.Caption)
	// 未覆盖的字段保持默认
	assert.Equal(t, int64(5*1024*1024), cfg.Fetch.MaxBytes)
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.HTTP.CORS.AllowOrigins)
}

func TestLoader_ConfigPathFromEnv(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("caption:\n  provider: static\n"), 0644))
	t.Setenv(EnvConfigPath, configFile)

	res, err := NewLoader().WithDotEnv(false).Load()
	require.NoError(t, err)
	assert.Equal(t, configFile, res.Path)
	assert.Equal(t, "static", res.Config.Caption.Provider)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "invalid server port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.Fetch.Timeout = 0 }, wantErr: true},
		{name: "zero max bytes", mutate: func(c *Config) { c.Fetch.MaxBytes = 0 }, wantErr: true},
		{name: "bad cors origin", mutate: func(c *Config) { c.HTTP.CORS.AllowOrigins = []string{"yourfrontend.com"} }, wantErr: true},
		{name: "wildcard cors origin", mutate: func(c *Config) { c.HTTP.CORS.AllowOrigins = []string{"*"} }},
		{name: "bad deny cidr", mutate: func(c *Config) { c.SSRF.DenyCIDRs = []string{"10.0.0.0/33"} }, wantErr: true},
		{name: "zero concurrency", mutate: func(c *Config) { c.Caption.MaxConcurrency = 0 }, wantErr: true},
		{name: "openai without key", mutate: func(c *Config) { c.Caption.Provider = "openai" }, wantErr: true},
		{name: "openai with key", mutate: func(c *Config) {
			c.Caption.Provider = "openai"
			c.Caption.OpenAI.APIKey = "sk-test"
		}},
		{name: "unknown provider", mutate: func(c *Config) { c.Caption.Provider = "clip" }, wantErr: true},
		{name: "unknown journal driver", mutate: func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.Driver = "mongo"
		}, wantErr: true},
		{name: "disabled journal ignores driver", mutate: func(c *Config) {
			c.Journal.Enabled = false
			c.Journal.Driver = "mongo"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
