package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-phorce/lockdown/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_PlainPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("addr: device.local:62078\nlabel: fleet-script\n"), 0600))

	cfg, err := config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, "device.local:62078", cfg.Addr)
	assert.Equal(t, "fleet-script", cfg.Label)
	assert.Empty(t, cfg.StoreDir)
}

func Test_Load_EnvSchema(t *testing.T) {
	t.Setenv("LOCKDOWNCTL_TEST_CFG", "addr: env-device:62078\n")
	cfg, err := config.Load("env://LOCKDOWNCTL_TEST_CFG")
	require.NoError(t, err)
	assert.Equal(t, "env-device:62078", cfg.Addr)
}

func Test_Clone_IsIndependentCopy(t *testing.T) {
	cfg := &config.Config{Addr: "a:1", Label: "l"}
	clone := cfg.Clone()
	clone.Addr = "b:2"
	assert.Equal(t, "a:1", cfg.Addr)
	assert.Equal(t, "b:2", clone.Addr)
}
