package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Broadcaster dev")
	assert.Contains(t, out, "Commit: unknown")
}

func TestDemoCommand(t *testing.T) {
	out, err := execute(t, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "A <- event 1 [x]")
	assert.Contains(t, out, "B <- event 2 [y]")
}

func TestDemoCommand_BadLogLevel(t *testing.T) {
	_, err := execute(t, "demo", "--log-level", "loud")
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "nope")
	assert.Error(t, err)
}

func TestLoadConfig_FlagOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o644))

	cfg, err := loadConfig(cliFlags{configPath: path, logLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = loadConfig(cliFlags{configPath: path, logLevel: "loud"})
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(cliFlags{configPath: filepath.Join(t.TempDir(), "missing.toml")})
	assert.Error(t, err)
}
