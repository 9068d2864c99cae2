package config

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Provider.Model, cfg.Provider.Model)
	assert.Equal(t, StoreMemory, cfg.Store.Kind)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "canvas.yaml", `
provider:
  kind: scripted
  timeout: 5s
  retries: 1
store:
  kind: redis
  addr: redis:6379
  prefix: "test:"
log:
  level: debug
scopes:
  - id: k1
    category: knowledge
    name: Contract law
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderScripted, cfg.Provider.Kind)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 1, cfg.Provider.Retries)
	assert.Equal(t, "gemini-2.0-flash", cfg.Provider.Model, "unset fields keep defaults")
	assert.Equal(t, "redis:6379", cfg.Store.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Scopes, 1)
	assert.Equal(t, "Contract law", cfg.Scopes[0].Name)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "canvas.json", `{"server": {"addr": ":9090"}, "provider": {"kind": "scripted"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvProvider, "Scripted")
	t.Setenv(EnvModel, "gemini-test")
	t.Setenv(EnvAPIKey, "secret")
	t.Setenv(EnvRedisAddr, "cache:6379")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvAddr, ":7000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderScripted, cfg.Provider.Kind)
	assert.Equal(t, "gemini-test", cfg.Provider.Model)
	assert.Equal(t, "secret", cfg.Provider.APIKey)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, "cache:6379", cfg.Store.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_CustomKeyVariable(t *testing.T) {
	t.Setenv("MY_KEY", "abc")
	path := writeFile(t, "canvas.yaml", "provider:\n  api_key_env: MY_KEY\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Provider.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "provider: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "kind.yaml", "provider:\n  kind: openai\n"))
	assert.ErrorContains(t, err, "unknown provider kind")

	_, err = Load(writeFile(t, "store.yaml", "store:\n  kind: etcd\n"))
	assert.ErrorContains(t, err, "unknown store kind")
}

func TestLoad_EncryptionKey(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	t.Setenv(EnvEncryptionKey, key)

	cfg, err := Load(writeFile(t, "canvas.yaml", "store:\n  redact_pii: true\n"))
	require.NoError(t, err)
	assert.Len(t, cfg.Store.EncryptionKey, 32)
	assert.True(t, cfg.Store.RedactPII)

	t.Setenv(EnvEncryptionKey, base64.StdEncoding.EncodeToString([]byte("short")))
	_, err = Load("")
	assert.ErrorContains(t, err, "must decode to 32 bytes")

	t.Setenv(EnvEncryptionKey, "%%%")
	_, err = Load("")
	assert.ErrorContains(t, err, "not valid base64")
}
