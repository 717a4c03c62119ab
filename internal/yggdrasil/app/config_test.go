package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]string{"--config", writeConfigFile(t, "")})
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Listen)
	require.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
	require.Equal(t, 10*time.Second, cfg.Server.ShutdownGracePeriod)
	require.Equal(t, "yggdrasil.db", cfg.Database.File)
	require.Equal(t, "fs", cfg.Textures.Backend)
	require.Equal(t, time.Minute, cfg.Housekeeping.Interval)
	require.Equal(t, "info", cfg.Log.Level)
	require.Empty(t, cfg.Fallback.Endpoints)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen: ":9000"
  base_url: "https://skins.example.com"
meta:
  server_name: "Example Skins"
  skin_domains:
    - skins.example.com
fallback:
  endpoints:
    - name: mojang
      priority: 0
      session_url: "https://sessionserver.mojang.com"
      account_url: "https://api.mojang.com"
      timeout: 5s
      cache_ttl: 30s
      skin_domains:
        - .minecraft.net
`)

	cfg, err := LoadConfig([]string{"--config", path})
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.Server.Listen)
	require.Equal(t, "https://skins.example.com", cfg.Server.BaseURL)
	require.Equal(t, "Example Skins", cfg.Meta.ServerName)

	require.Len(t, cfg.Fallback.Endpoints, 1)
	ep := cfg.Fallback.Endpoints[0]
	require.Equal(t, "mojang", ep.Name)
	require.Equal(t, 5*time.Second, ep.Timeout)
	require.Equal(t, 30*time.Second, ep.CacheTTL)

	eps := cfg.Endpoints()
	require.Len(t, eps, 1)
	require.Equal(t, "https://sessionserver.mojang.com", eps[0].SessionURL)
	require.Equal(t, []string{".minecraft.net"}, eps[0].SkinDomains)
}

func TestLoadConfigFlagOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  listen: \":9000\"\n")

	cfg, err := LoadConfig([]string{"--config", path, "--server.listen", ":7000"})
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Server.Listen)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	path := writeConfigFile(t, "textures:\n  backend: ftp\n")
	_, err := LoadConfig([]string{"--config", path})
	require.Error(t, err)

	path = writeConfigFile(t, `
textures:
  backend: s3
`)
	_, err = LoadConfig([]string{"--config", path})
	require.Error(t, err, "s3 backend without a bucket must be rejected")

	path = writeConfigFile(t, `
fallback:
  endpoints:
    - name: broken
`)
	_, err = LoadConfig([]string{"--config", path})
	require.Error(t, err, "endpoints without URLs must be rejected")
}
