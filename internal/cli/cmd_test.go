package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/layer-3/keyauth/adapters/identity"
	"github.com/layer-3/keyauth/adapters/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = ""
		keygenOut = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{"serve": false, "migrate": false, "identity": false, "keygen": false}
	for _, cmd := range rootCmd.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "expected command %q to be registered", name)
	}
}

func TestKeygen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")

	_, err := run(t, "keygen", "--out", path)
	require.NoError(t, err)

	_, err = tokenizer.LoadKey(path)
	assert.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestKeygen_Stdout(t *testing.T) {
	out, err := run(t, "keygen")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN EC PRIVATE KEY")
}

func TestIdentityDisableEnable(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "ids.db")
	const address = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	s, err := identity.OpenSQLite(dsn)
	require.NoError(t, err)
	_, err = s.Create(context.Background(), address, "nonce")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("identity:\n  driver: sqlite\n  sqlite:\n    dsn: "+dsn+"\nlogging:\n  level: error\n"), 0o600))

	out, err := run(t, "--config", cfgPath, "identity", "disable", strings.ToLower(address))
	require.NoError(t, err)
	assert.Contains(t, out, address+" disabled")

	out, err = run(t, "--config", cfgPath, "identity", "enable", address)
	require.NoError(t, err)
	assert.Contains(t, out, address+" enabled")
}

func TestIdentityDisable_Unknown(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("identity:\n  driver: sqlite\n  sqlite:\n    dsn: "+filepath.Join(dir, "ids.db")+"\nlogging:\n  level: error\n"), 0o600))

	_, err := run(t, "--config", cfgPath, "identity", "disable", "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	assert.ErrorContains(t, err, "user not found")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o600))

	_, err := run(t, "--config", cfgPath, "migrate")
	assert.ErrorContains(t, err, "identity.driver=postgres")
}
