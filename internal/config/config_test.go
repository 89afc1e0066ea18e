package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfigFile(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"http": map[string]any{
			"addr":        ":9090",
			"readTimeout": "5s",
		},
		"inverter": map[string]any{
			"host":         "192.168.1.123",
			"source":       "tcp",
			"serialNumber": 987654321,
		},
		"auth": map[string]any{
			"enabled": true,
			"apiKeys": []string{"key-1"},
		},
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "192.168.1.123", cfg.Inverter.Host)
	assert.Equal(t, "tcp", cfg.Inverter.Source)
	assert.Equal(t, uint32(987654321), cfg.Inverter.SerialNumber)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, []string{"key-1"}, cfg.Auth.APIKeys)

	// 未显式配置的项走默认值
	assert.Equal(t, 8899, cfg.Inverter.TCPPort)
	assert.Equal(t, 10*time.Second, cfg.Inverter.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	path := writeConfigFile(t, map[string]any{
		"inverter": map[string]any{
			"host":   "example.com",
			"source": "modbus",
		},
	})

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inverter.source")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Inverter: InverterConfig{Host: "example.com", Source: "js"}}
	}

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := base()
		cfg.Inverter.Host = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("tcp requires serial number", func(t *testing.T) {
		cfg := base()
		cfg.Inverter.Source = "tcp"
		require.Error(t, cfg.Validate())

		cfg.Inverter.SerialNumber = 1
		require.NoError(t, cfg.Validate())
	})

	t.Run("html requires credentials", func(t *testing.T) {
		cfg := base()
		cfg.Inverter.Source = "html"
		require.Error(t, cfg.Validate())

		cfg.Inverter.Username = "klaas"
		require.Error(t, cfg.Validate())

		cfg.Inverter.Password = "supercool"
		require.NoError(t, cfg.Validate())
	})
}
