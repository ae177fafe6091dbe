package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
auth:
  base_url: https://auth.example.com
  username: svc
  password: secret
catalog:
  base_url: https://media.example.com
stream:
  delivery: hls
  settings:
    lossless: true
    segment_sec: 2
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15, cfg.Catalog.RequestTimeout)
	assert.Equal(t, 3, cfg.Catalog.MaxRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "hls", cfg.Stream.Delivery)
	assert.Equal(t, 10*time.Second, cfg.TokenTimeout())
	assert.Equal(t, 15*time.Second, cfg.CatalogTimeout())
	assert.Equal(t, true, cfg.Stream.Settings["lossless"])
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("OTOBOX_USERNAME", "env-user")
	t.Setenv("OTOBOX_PASSWORD", "env-pass")
	t.Setenv("OTOBOX_CATALOG_URL", "https://other.example.com")

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.Auth.Username)
	assert.Equal(t, "env-pass", cfg.Auth.Password)
	assert.Equal(t, "https://other.example.com", cfg.Catalog.BaseURL)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing auth credentials",
			content: `
auth:
  base_url: https://auth.example.com
catalog:
  base_url: https://media.example.com
`,
		},
		{
			name: "invalid catalog url",
			content: `
auth:
  base_url: https://auth.example.com
  username: svc
  password: secret
catalog:
  base_url: not-a-url
`,
		},
		{
			name: "unknown delivery variant",
			content: `
auth:
  base_url: https://auth.example.com
  username: svc
  password: secret
catalog:
  base_url: https://media.example.com
stream:
  delivery: dash
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Keep env from masking the failure under test.
			t.Setenv("OTOBOX_USERNAME", "")
			t.Setenv("OTOBOX_PASSWORD", "")
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
