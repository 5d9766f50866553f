package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	return dir
}

func TestDefaultConfig_ServerDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Server.WriteTimeout, "LLM responses can run long")
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestDefaultConfig_RoutingDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "./routing.yaml", cfg.Routing.DocumentPath)
	assert.Equal(t, "./web/admin", cfg.Routing.AdminPagePath)
	assert.Equal(t, 60*time.Second, cfg.Routing.UpstreamTimeout)
}

func TestDefaultConfig_LoggingAndMetricsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_WithoutFileFallsBackToDefaults(t *testing.T) {
	resetViper(t)
	chdirTemp(t)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "./routing.yaml", cfg.Routing.DocumentPath)
}

func TestLoad_ReadsConfigFileFromWorkingDirectory(t *testing.T) {
	resetViper(t)
	dir := chdirTemp(t)

	configYAML := "server:\n  port: 9999\nrouting:\n  document_path: /etc/gateway/routing.yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0o644))

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/etc/gateway/routing.yaml", cfg.Routing.DocumentPath)
}

func TestLoad_EnvironmentVariableOverridesFile(t *testing.T) {
	resetViper(t)
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9999\n"), 0o644))

	t.Setenv("GATEWAY_SERVER_PORT", "7070")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_ConfigFileEnvVarOverridesSearchPaths(t *testing.T) {
	resetViper(t)
	chdirTemp(t)

	elsewhere := t.TempDir()
	configPath := filepath.Join(elsewhere, "custom.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 6060\n"), 0o644))
	t.Setenv("GATEWAY_CONFIG_FILE", configPath)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoad_OnConfigChangeFiresAfterFileEdit(t *testing.T) {
	resetViper(t)
	dir := chdirTemp(t)
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 9999\n"), 0o644))

	changed := make(chan struct{}, 1)
	_, err := Load(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8888\n"), 0o644))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onConfigChange was not invoked after file edit")
	}
}
