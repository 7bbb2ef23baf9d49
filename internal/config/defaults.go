package config

// Default values for configuration options. These are "layer 0" of the
// four-layer override chain and work for most users without any config file.
const (
	defaultChunkSize      = "8MiB"
	defaultBandwidthLimit = "0"
	defaultDebounce       = "2s"
	defaultFeedListen     = "127.0.0.1:7399"
	defaultLogLevel       = "info"
)

// DefaultConfig returns a Config populated with all default values.
// Used both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists. Token and journal
// paths default to the platform data directory.
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			TokenPath: DefaultTokenPath(),
		},
		Transfer: TransferConfig{
			ChunkSize:      defaultChunkSize,
			BandwidthLimit: defaultBandwidthLimit,
		},
		Watch: WatchConfig{
			Debounce: defaultDebounce,
		},
		Journal: JournalConfig{
			Path: DefaultJournalPath(),
		},
		Feed: FeedConfig{
			Listen: defaultFeedListen,
		},
		Log: LogConfig{
			Level: defaultLogLevel,
		},
	}
}
