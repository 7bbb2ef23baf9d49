package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// newWatchCmd watches a local directory and re-replicates after quiet
// periods.
func newWatchCmd() *cobra.Command {
	var (
		destPath string
		destID   string
		feedAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and replicate changes to Google Drive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := buildLogger()

			debounce, err := time.ParseDuration(resolvedCfg.Watch.Debounce)
			if err != nil {
				return fmt.Errorf("invalid watch debounce: %w", err)
			}

			client, err := newDriveClient(ctx, logger)
			if err != nil {
				return err
			}

			dest, err := resolveDestination(ctx, client, destPath, destID)
			if err != nil {
				return err
			}

			remote, err := buildRemote(client, logger)
			if err != nil {
				return err
			}

			cleanup, err := writePIDFile(watchPIDPath(args[0]))
			if err != nil {
				return err
			}
			defer cleanup()

			job, err := newReplicationJob(ctx, remote, resolveFeedAddr(feedAddr), logger)
			if err != nil {
				return err
			}
			defer job.close()

			return watchLoop(ctx, job, args[0], dest.ID, debounce, logger)
		},
	}

	cmd.Flags().StringVar(&destPath, "dest", "", "destination folder path on Drive (created if missing)")
	cmd.Flags().StringVar(&destID, "dest-id", "", "destination folder id on Drive (overrides --dest)")
	cmd.Flags().StringVar(&feedAddr, "feed", "", "serve a live WebSocket event feed on this address (\"auto\" = feed.listen from config)")
	cmd.Flags().String("chunk-size", "", "upload chunk size (e.g. 8MiB)")
	cmd.Flags().String("bandwidth-limit", "", "upload bandwidth cap (e.g. 5MB/s, 0 = unlimited)")
	cmd.Flags().Bool("verify", false, "verify MD5 checksums of completed uploads")
	cmd.Flags().String("journal-path", "", "journal database path")
	cmd.Flags().Bool("no-journal", false, "do not record runs in the journal")

	return cmd
}

// watchLoop runs an initial replication, then re-runs after each quiet
// period of at least the debounce interval. Returns when the context is
// cancelled.
func watchLoop(ctx context.Context, job *replicationJob, root, destID string, debounce time.Duration, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchesRecursive(watcher, root); err != nil {
		return err
	}

	statusf("Watching %s (debounce %s). Ctrl-C to stop.", root, debounce)

	runOnce(ctx, job, root, destID, logger)

	group, ctx := errgroup.WithContext(ctx)

	// Coalescing signal: capacity one, so a burst of events collapses
	// into a single pending run.
	changes := make(chan struct{}, 1)

	group.Go(func() error {
		return pumpWatchEvents(ctx, watcher, changes, logger)
	})

	group.Go(func() error {
		return debounceRuns(ctx, job, root, destID, debounce, changes, logger)
	})

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// pumpWatchEvents forwards filesystem events into the coalescing
// channel, registering watches on newly created directories.
func pumpWatchEvents(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- struct{}, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			logger.Debug("filesystem event", slog.String("op", ev.Op.String()), slog.String("path", ev.Name))

			if ev.Op.Has(fsnotify.Create) {
				if info, statErr := os.Lstat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addWatchesRecursive(watcher, ev.Name); addErr != nil {
						logger.Warn("watching new directory failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()),
						)
					}
				}
			}

			select {
			case changes <- struct{}{}:
			default:
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// debounceRuns waits for a quiet period after each change signal, then
// replicates. Changes arriving during a run queue the next one.
func debounceRuns(ctx context.Context, job *replicationJob, root, destID string, debounce time.Duration, changes <-chan struct{}, logger *slog.Logger) error {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}

			timer.Reset(debounce)
		case <-timer.C:
			statusf("Change detected, replicating...")
			runOnce(ctx, job, root, destID, logger)
		}
	}
}

// runOnce performs one replication run inside the watch loop. Run
// failures are logged so the watcher survives transient conditions.
func runOnce(ctx context.Context, job *replicationJob, root, destID string, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}

	if _, err := job.run(ctx, root, destID); err != nil {
		logger.Error("replication run failed", slog.String("error", err.Error()))
	}
}

// addWatchesRecursive registers root and every directory below it.
// Directories that vanish mid-walk are skipped.
func addWatchesRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}

			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if err := watcher.Add(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return fmt.Errorf("watching %s: %w", path, err)
		}

		return nil
	})
}
