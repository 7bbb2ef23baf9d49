package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal errors with "did you mean?"
// suggestions — silently ignoring a typo in a config file leads to
// hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values. This supports the zero-config
// first-run experience: users can push without creating a config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// Precedence ensures CLI flags always win.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	// 1. Resolve config path: CLI > env > default.
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	// 2. Load config file (returns defaults if no file exists).
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides.
	applyEnvOverrides(cfg, env)

	// 4. Apply CLI overrides (pointer fields: nil = not specified).
	applyCLIOverrides(cfg, cli)

	// 5. Validate the final resolved configuration.
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config, env EnvOverrides) {
	if env.ClientID != "" {
		cfg.Auth.ClientID = env.ClientID
	}

	if env.ClientSecret != "" {
		cfg.Auth.ClientSecret = env.ClientSecret
	}

	if env.TokenPath != "" {
		cfg.Auth.TokenPath = env.TokenPath
	}

	if env.ChunkSize != "" {
		cfg.Transfer.ChunkSize = env.ChunkSize
	}

	if env.BandwidthLimit != "" {
		cfg.Transfer.BandwidthLimit = env.BandwidthLimit
	}

	if env.JournalPath != "" {
		cfg.Journal.Path = env.JournalPath
	}

	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
}

func applyCLIOverrides(cfg *Config, cli CLIOverrides) {
	if cli.TokenPath != nil {
		cfg.Auth.TokenPath = *cli.TokenPath
	}

	if cli.ChunkSize != nil {
		cfg.Transfer.ChunkSize = *cli.ChunkSize
	}

	if cli.BandwidthLimit != nil {
		cfg.Transfer.BandwidthLimit = *cli.BandwidthLimit
	}

	if cli.Verify != nil {
		cfg.Transfer.VerifyChecksums = *cli.Verify
	}

	if cli.JournalPath != nil {
		cfg.Journal.Path = *cli.JournalPath
	}

	if cli.NoJournal != nil {
		cfg.Journal.Disabled = *cli.NoJournal
	}

	if cli.LogLevel != nil {
		cfg.Log.Level = *cli.LogLevel
	}
}
