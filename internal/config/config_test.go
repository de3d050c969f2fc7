package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/paramctl/internal/description"
	"github.com/danmuck/paramctl/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paramctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
structure = "structure.yaml"

[server]
port = 6000
read_timeout = "30s"

[plugins]
names = ["Memory", " Badger ", ""]

[admin]
addr = "127.0.0.1:9090"
`)
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "structure.yaml"), cfg.Structure)
	assert.Empty(t, cfg.Settings)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"Memory", "Badger"}, cfg.Plugins.Names)
	assert.True(t, cfg.UsesBadger())
	assert.Equal(t, filepath.Join(dir, "paramctl.db"), cfg.Badger.Path)
	assert.True(t, cfg.Badger.SyncWrites)
	assert.True(t, cfg.Engine.TuningAllowed)
	assert.True(t, cfg.Engine.AutoSync)
	assert.Equal(t, "127.0.0.1:9090", cfg.Admin.Addr)

	loc := cfg.Location()
	assert.Equal(t, []string{"Memory", "Badger"}, loc.Plugins)
	assert.Equal(t, cfg.Badger.Path, cfg.BadgerStore().Path)
}

func TestLoadEnvOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
structure = "structure.yaml"

[engine]
auto_sync = false
`)
	abs := filepath.Join(t.TempDir(), "other.yaml")
	t.Setenv("PARAMCTL_STRUCTURE", abs)
	t.Setenv("PARAMCTL_SERVER_PORT", "0")
	t.Setenv("PARAMCTL_PLUGINS", "Memory,Badger")
	t.Setenv("PARAMCTL_BADGER_PATH", "state/db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.Structure)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, []string{"Memory", "Badger"}, cfg.Plugins.Names)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "state", "db"), cfg.Badger.Path)
	assert.False(t, cfg.Engine.AutoSync)
	assert.True(t, cfg.Engine.TuningAllowed)
}

func TestLoadRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := map[string]struct {
		body string
		want string
	}{
		"unknown key":         {body: "structure = \"s.yaml\"\nbogus = 1\n", want: "unknown key"},
		"bad duration":        {body: "structure = \"s.yaml\"\n[server]\nread_timeout = \"soon\"\n", want: "read_timeout"},
		"missing structure":   {body: "[server]\nport = 5000\n", want: "Structure"},
		"port range":          {body: "structure = \"s.yaml\"\n[server]\nport = 70000\n", want: "Port"},
		"admin address":       {body: "structure = \"s.yaml\"\n[admin]\naddr = \"nope\"\n", want: "Addr"},
		"badger without path": {body: "structure = \"s.yaml\"\n[plugins]\nnames = [\"Badger\"]\n[badger]\npath = \"\"\n", want: "badger.path"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestInMemoryBadgerNeedsNoPath(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Structure = "s.yaml"
	cfg.Plugins.Names = []string{"Badger"}
	cfg.Badger = BadgerConfig{InMemory: true}
	assert.NoError(t, Validate(cfg))
	assert.True(t, cfg.BadgerStore().InMemory)
}

func TestTemplates(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "paramctl.toml")
	require.NoError(t, WriteTemplate(path, "config", false))
	assert.Error(t, WriteTemplate(path, "config", false))
	require.NoError(t, WriteTemplate(path, "Config", true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "structure.yaml"), cfg.Structure)
	assert.Equal(t, filepath.Join(dir, "settings.yaml"), cfg.Settings)

	for _, kind := range []string{"structure", "settings"} {
		body, err := Template(kind)
		require.NoError(t, err)
		root, err := description.ParseYAML([]byte(body))
		require.NoError(t, err, kind)
		assert.NotEmpty(t, root.Children(), kind)
	}

	_, err = Template("bogus")
	assert.Error(t, err)
}
