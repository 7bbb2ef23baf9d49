package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadOrDefault_NoFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "8MiB", cfg.Transfer.ChunkSize)
	assert.Equal(t, "0", cfg.Transfer.BandwidthLimit)
	assert.Equal(t, "2s", cfg.Watch.Debounce)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Journal.Disabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[transfer]
chunk_size = "512KiB"
verify_checksums = true

[log]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "512KiB", cfg.Transfer.ChunkSize)
	assert.True(t, cfg.Transfer.VerifyChecksums)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, "2s", cfg.Watch.Debounce)
	assert.Equal(t, "0", cfg.Transfer.BandwidthLimit)
}

func TestLoad_UnknownKeySuggestion(t *testing.T) {
	path := writeConfig(t, `
[transfer]
chunk_sze = "512KiB"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"transfer.chunk_sze"`)
	assert.Contains(t, err.Error(), `did you mean "transfer.chunk_size"`)
}

func TestLoad_UnknownKeyNoSuggestion(t *testing.T) {
	path := writeConfig(t, `
completely_unrelated_setting = 1
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_InvalidChunkSize(t *testing.T) {
	path := writeConfig(t, `
[transfer]
chunk_size = "300KiB"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple of 256KiB")
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, `[transfer`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestResolve_Precedence(t *testing.T) {
	path := writeConfig(t, `
[transfer]
chunk_size = "1MiB"
bandwidth_limit = "1MB/s"

[log]
level = "warn"
`)

	cliChunk := "2MiB"
	cfg, err := Resolve(
		EnvOverrides{
			ConfigPath: path,
			ChunkSize:  "4MiB",
			LogLevel:   "error",
		},
		CLIOverrides{
			ChunkSize: &cliChunk,
		},
	)
	require.NoError(t, err)

	// CLI beats env beats file.
	assert.Equal(t, "2MiB", cfg.Transfer.ChunkSize)
	// Env beats file where no CLI flag was given.
	assert.Equal(t, "error", cfg.Log.Level)
	// File beats defaults where nothing else was given.
	assert.Equal(t, "1MB/s", cfg.Transfer.BandwidthLimit)
}

func TestResolve_CLIConfigPathBeatsEnv(t *testing.T) {
	envPath := writeConfig(t, `
[log]
level = "debug"
`)
	cliPath := writeConfig(t, `
[log]
level = "warn"
`)

	cfg, err := Resolve(
		EnvOverrides{ConfigPath: envPath},
		CLIOverrides{ConfigPath: cliPath},
	)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestResolve_BoolPointerOverrides(t *testing.T) {
	path := writeConfig(t, `
[transfer]
verify_checksums = true
`)

	off := false
	cfg, err := Resolve(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{Verify: &off},
	)
	require.NoError(t, err)

	// Explicit --verify=false overrides the config file's true.
	assert.False(t, cfg.Transfer.VerifyChecksums)
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvChunkSize, "16MiB")
	t.Setenv(EnvLogLevel, "")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "16MiB", overrides.ChunkSize)
	assert.Empty(t, overrides.LogLevel)
}
