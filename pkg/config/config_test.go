package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("APP_CONFIG_NAME", "does-not-exist")
	t.Chdir(t.TempDir())

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvDev, c.Env)
	require.Equal(t, "compose", c.Manifest.Format)
	require.Equal(t, 5*time.Minute, c.Commands.Timeout)
	require.Equal(t, 24, c.Provisioning.PasswordLength)
	require.Len(t, c.ProductSeeds(), 4)
	require.NotNil(t, c.GetProductSeed("shop"))
}

func TestNew_ReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prod.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
env: prod
admin_db:
  host: db.internal
products:
  - name: crm
    shared_container_name: crm-system
    shared_container_port: 8500
    dedicated_port_start: 8501
    dedicated_port_end: 8550
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_HOSTING_TOKEN", "tok")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, EnvProd, c.Env)
	require.Equal(t, "db.internal", c.AdminDB.Host)
	require.Equal(t, "tok", c.Hosting.Token)
	require.Len(t, c.ProductSeeds(), 1)
	require.Equal(t, 8501, c.GetProductSeed("crm").DedicatedPortStart)
	require.Contains(t, c.AdminDB.DSN("shop_acme"), "dbname=shop_acme")
}
