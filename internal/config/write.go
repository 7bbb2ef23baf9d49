package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the starter config written by `driveup config init`.
// All settings are present as commented-out defaults so users can discover
// every option without reading docs.
const configTemplate = `# driveup configuration

[auth]
# OAuth2 client for the Google Drive API (APIs & Services > Credentials,
# application type "Desktop app"). The client secret of a desktop app is not
# confidential; DRIVEUP_CLIENT_SECRET overrides it if you prefer.
# client_id = ""
# client_secret = ""

# Where the OAuth token is stored (default: platform data directory).
# token_path = ""

[transfer]
# Upload chunk size. Must be a multiple of 256KiB.
# chunk_size = "8MiB"

# Upload bandwidth cap, e.g. "5MB/s". "0" disables limiting.
# bandwidth_limit = "0"

# Compare the MD5 Drive reports for each completed upload against the local
# content.
# verify_checksums = false

[watch]
# Quiet period after the last filesystem event before a run starts.
# debounce = "2s"

[journal]
# Run history database (default: platform data directory).
# path = ""
# disabled = false

[feed]
# Default listen address for --feed.
# listen = "127.0.0.1:7399"

[log]
# debug, info, warn, or error.
# level = "info"
`

// WriteTemplate creates the starter config file at path. Parent directories
// are created as needed. Refuses to overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to path via a temp file + rename so a crash
// cannot leave a partial config file behind.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, configFilePermissions); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming: %w", err)
	}

	success = true

	return nil
}
