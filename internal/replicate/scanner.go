package replicate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ScanResult is the outcome of the pre-pass: how many regular files the
// tree holds and how many bytes they sum to.
type ScanResult struct {
	Files int
	Bytes int64
}

// Scan walks root once and totals its regular files. Symbolic links are
// neither counted nor followed, matching what a replication run will
// actually transfer. Files that cannot be stat'd are logged and skipped.
// A nil interrupted func disables flag polling; context cancellation is
// always honored. Returns ErrCancelled when interrupted mid-walk and a
// zero result with an error when root is missing or not a directory.
func Scan(ctx context.Context, root string, interrupted func() bool, logger *slog.Logger) (ScanResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return ScanResult{}, fmt.Errorf("scanning %s: %w", root, err)
	}

	if !info.IsDir() {
		return ScanResult{}, fmt.Errorf("scanning %s: not a directory", root)
	}

	var result ScanResult

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if cancelled(ctx, interrupted) {
			return ErrCancelled
		}

		if walkErr != nil {
			if path == root {
				return walkErr
			}

			logger.Warn("scan: skipping unreadable path", "path", path, "error", walkErr)

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		fileInfo, statErr := d.Info()
		if statErr != nil {
			logger.Warn("scan: skipping unstatable file", "path", path, "error", statErr)

			return nil
		}

		result.Files++
		result.Bytes += fileInfo.Size()

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return ScanResult{}, ErrCancelled
		}

		return ScanResult{}, fmt.Errorf("scanning %s: %w", root, err)
	}

	return result, nil
}

// cancelled folds the polled cooperative flag and context cancellation
// into one check.
func cancelled(ctx context.Context, interrupted func() bool) bool {
	if interrupted != nil && interrupted() {
		return true
	}

	return ctx.Err() != nil
}
