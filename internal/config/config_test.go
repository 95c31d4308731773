package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/expenso.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Lark.Enabled)
	assert.Equal(t, "chat_id", cfg.Lark.ReceiveIDType)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_FileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
database:
  path: /tmp/expenso-test.db
lark:
  enabled: true
  app_id: cli_from_file
logger:
  format: console
`)
	t.Setenv("LARK_APP_SECRET", "secret")
	t.Setenv("LARK_RECEIVE_ID", "oc_chat")
	t.Setenv("EXPENSO_LARK_APP_ID", "cli_from_env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/tmp/expenso-test.db", cfg.Database.Path)
	assert.Equal(t, "cli_from_env", cfg.Lark.AppID)
	assert.Equal(t, "secret", cfg.Lark.AppSecret)
	assert.Equal(t, "oc_chat", cfg.Lark.ReceiveID)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EXPENSO_SERVER_PORT=7070\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("EXPENSO_SERVER_PORT") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Path: "x.db"},
			Logger:   LoggerConfig{Format: "json"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"lark without app id", func(c *Config) { c.Lark.Enabled = true }, "lark.app_id"},
		{"lark without receiver", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "a", AppSecret: "s"}
		}, "lark.receive_id"},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 9000, Mode: "debug"},
		Database: DatabaseConfig{Path: "x.db", MaxOpenConns: 1, AutoMigrate: true},
		Lark:     LarkConfig{Enabled: true, AppID: "a", AppSecret: "s", ReceiveID: "oc"},
		Events:   EventsConfig{NotifySubmitted: true},
	}

	cc := cfg.ToContainerConfig()
	assert.Equal(t, "x.db", cc.Database.Path)
	assert.True(t, cc.Database.AutoMigrate)
	assert.Equal(t, 9000, cc.Server.Port)
	assert.Equal(t, "oc", cc.Lark.ReceiveID)
	assert.True(t, cc.Events.NotifySubmitted)
	assert.NoError(t, cc.Validate())
}
