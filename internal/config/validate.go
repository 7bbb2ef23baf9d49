package config

import (
	"errors"
	"fmt"
	"time"
)

// chunkAlignment is the Drive resumable upload chunk granularity (256 KiB).
// Every chunk except the last must be a multiple of this, so configured chunk
// sizes must be too.
const chunkAlignment = 256 * 1024

// validLogLevels are the accepted values for log.level.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks a Config for invalid values. It returns all problems at
// once via errors.Join so users fix their config file in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Errorf(
			"log.level %q is invalid (use debug, info, warn, or error)", cfg.Log.Level))
	}

	if err := validateChunkSize(cfg.Transfer.ChunkSize); err != nil {
		errs = append(errs, err)
	}

	if cfg.Watch.Debounce != "" {
		if _, err := time.ParseDuration(cfg.Watch.Debounce); err != nil {
			errs = append(errs, fmt.Errorf("watch.debounce %q is not a duration: %w",
				cfg.Watch.Debounce, err))
		}
	}

	return errors.Join(errs...)
}

// validateChunkSize checks that transfer.chunk_size parses, is positive, and
// is aligned to the 256 KiB upload granularity.
func validateChunkSize(s string) error {
	n, err := ParseSize(s)
	if err != nil {
		return fmt.Errorf("transfer.chunk_size: %w", err)
	}

	if n <= 0 {
		return fmt.Errorf("transfer.chunk_size %q must be positive", s)
	}

	if n%chunkAlignment != 0 {
		return fmt.Errorf("transfer.chunk_size %q must be a multiple of 256KiB", s)
	}

	return nil
}
