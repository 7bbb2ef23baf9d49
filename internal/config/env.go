package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig         = "DRIVEUP_CONFIG"
	EnvClientID       = "DRIVEUP_CLIENT_ID"
	EnvClientSecret   = "DRIVEUP_CLIENT_SECRET"
	EnvTokenPath      = "DRIVEUP_TOKEN_PATH"
	EnvChunkSize      = "DRIVEUP_CHUNK_SIZE"
	EnvBandwidthLimit = "DRIVEUP_BANDWIDTH_LIMIT"
	EnvJournalPath    = "DRIVEUP_JOURNAL_PATH"
	EnvLogLevel       = "DRIVEUP_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables.
// The client secret lives here so it can stay out of the config file on
// shared machines.
type EnvOverrides struct {
	ConfigPath     string
	ClientID       string
	ClientSecret   string
	TokenPath      string
	ChunkSize      string
	BandwidthLimit string
	JournalPath    string
	LogLevel       string
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:     os.Getenv(EnvConfig),
		ClientID:       os.Getenv(EnvClientID),
		ClientSecret:   os.Getenv(EnvClientSecret),
		TokenPath:      os.Getenv(EnvTokenPath),
		ChunkSize:      os.Getenv(EnvChunkSize),
		BandwidthLimit: os.Getenv(EnvBandwidthLimit),
		JournalPath:    os.Getenv(EnvJournalPath),
		LogLevel:       os.Getenv(EnvLogLevel),
	}
}
