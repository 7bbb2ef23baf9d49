// Package config implements TOML configuration loading and platform-specific
// path resolution for driveup. It supports a four-layer override chain
// (defaults -> config file -> environment -> CLI flags) so one-off overrides
// never require editing the config file.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth     AuthConfig     `toml:"auth"`
	Transfer TransferConfig `toml:"transfer"`
	Watch    WatchConfig    `toml:"watch"`
	Journal  JournalConfig  `toml:"journal"`
	Feed     FeedConfig     `toml:"feed"`
	Log      LogConfig      `toml:"log"`
}

// AuthConfig holds OAuth2 client settings. Installed-application client IDs
// are not secret in the OAuth2 sense, but keeping them in the config file
// (or environment) avoids baking a shared ID into the binary.
type AuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenPath    string `toml:"token_path"`
}

// TransferConfig controls upload behavior. chunk_size must be a multiple of
// 256 KiB per the Drive resumable upload protocol. bandwidth_limit is a rate
// string such as "5MB/s"; "0" disables limiting. Sizes accept SI (KB, MB)
// and IEC (KiB, MiB) suffixes.
type TransferConfig struct {
	ChunkSize       string `toml:"chunk_size"`
	BandwidthLimit  string `toml:"bandwidth_limit"`
	VerifyChecksums bool   `toml:"verify_checksums"`
}

// WatchConfig controls watch mode. debounce is the quiet period after the
// last filesystem event before a replication run starts.
type WatchConfig struct {
	Debounce string `toml:"debounce"`
}

// JournalConfig controls the local run/transfer history database.
type JournalConfig struct {
	Path     string `toml:"path"`
	Disabled bool   `toml:"disabled"`
}

// FeedConfig controls the optional WebSocket event feed.
type FeedConfig struct {
	Listen string `toml:"listen"`
}

// LogConfig controls log output verbosity.
type LogConfig struct {
	Level string `toml:"level"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value" — --verify=false is different from
// not passing --verify at all.
type CLIOverrides struct {
	ConfigPath     string // --config flag (empty = use default)
	TokenPath      *string
	ChunkSize      *string
	BandwidthLimit *string
	Verify         *bool
	JournalPath    *string
	NoJournal      *bool
	LogLevel       *string
}
