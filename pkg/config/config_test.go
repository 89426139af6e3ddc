package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LoadLocal(t *testing.T) {
	t.Setenv("CONFIG_MODE", "local")

	path := filepath.Join(t.TempDir(), "chat-service.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))

	m := NewManager()
	require.NoError(t, m.LoadConfig(path, "chat-service"))

	assert.Equal(t, ModeLocal, m.GetMode())
	assert.Equal(t, ":9090", m.GetString("server.addr"))
	assert.True(t, m.IsSet("server.addr"))
	assert.Equal(t, path, m.Source())
	assert.NoError(t, m.Close())
}

func TestManager_MissingLocalFile(t *testing.T) {
	t.Setenv("CONFIG_MODE", "")

	m := NewManager()
	require.NoError(t, m.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), "chat-service"))
	assert.Empty(t, m.Source())
	assert.False(t, m.IsSet("server.addr"))
}

func TestManager_UnsupportedMode(t *testing.T) {
	t.Setenv("CONFIG_MODE", "etcd")

	err := NewManager().LoadConfig("", "chat-service")
	assert.ErrorContains(t, err, "unsupported config mode")
}

func TestNacosConfig_ApplyEnv(t *testing.T) {
	t.Setenv("NACOS_SERVER_ADDR", "nacos.local")
	t.Setenv("NACOS_GROUP", "")

	c := &NacosConfig{Group: "CHAT"}
	c.applyEnv("chat-service")

	assert.Equal(t, "nacos.local", c.ServerAddr)
	assert.Equal(t, "CHAT", c.Group)
	assert.Equal(t, "chat-service.yaml", c.DataID)
	assert.Equal(t, uint64(8848), c.ServerPort)
	assert.Equal(t, uint64(5000), c.TimeoutMs)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CR_INT", "42")
	t.Setenv("CR_BAD_INT", "x")
	t.Setenv("CR_BOOL", "1")
	t.Setenv("CR_FLOAT", "0.5")
	t.Setenv("CR_DURATION", "3s")
	t.Setenv("CR_LIST", "a:9092, b:9092,,")

	assert.Equal(t, "fallback", GetEnv("CR_UNSET", "fallback"))
	assert.Equal(t, 42, GetEnvAsInt("CR_INT", 1))
	assert.Equal(t, 1, GetEnvAsInt("CR_BAD_INT", 1))
	assert.True(t, GetEnvAsBool("CR_BOOL", false))
	assert.InDelta(t, 0.5, GetEnvAsFloat("CR_FLOAT", 0), 1e-9)
	assert.Equal(t, 3*time.Second, GetEnvAsDuration("CR_DURATION", time.Second))
	assert.Equal(t, []string{"a:9092", "b:9092"}, GetEnvAsSlice("CR_LIST", nil))
	assert.Equal(t, []string{"x"}, GetEnvAsSlice("CR_UNSET", []string{"x"}))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CR_DOTENV_KEY=from-file\n"), 0o600))
	t.Setenv("CR_DOTENV_KEY", "")
	os.Unsetenv("CR_DOTENV_KEY")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("CR_DOTENV_KEY"))
}
