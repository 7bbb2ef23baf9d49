package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mvasconcellos/driveup/internal/config"
	"github.com/mvasconcellos/driveup/internal/drive"
	"github.com/mvasconcellos/driveup/internal/journal"
	"github.com/mvasconcellos/driveup/internal/replicate"
)

// newPushCmd replicates a local directory tree into a Drive folder.
func newPushCmd() *cobra.Command {
	var (
		destPath string
		destID   string
		feedAddr string
	)

	cmd := &cobra.Command{
		Use:   "push <dir>",
		Short: "Replicate a local directory tree to Google Drive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := buildLogger()

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

			job, err := newReplicationJob(ctx, remote, resolveFeedAddr(feedAddr), logger)
			if err != nil {
				return err
			}
			defer job.close()

			result, err := job.run(ctx, args[0], dest.ID)
			if err != nil {
				return err
			}

			if !result.Success {
				return errors.New("replication did not complete")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&destPath, "dest", "", "destination folder path on Drive (created if missing)")
	cmd.Flags().StringVar(&destID, "dest-id", "", "destination folder id on Drive (overrides --dest)")
	cmd.Flags().StringVar(&feedAddr, "feed", "", "serve a live WebSocket event feed on this address (\"auto\" = feed.listen from config)")
	cmd.Flags().String("chunk-size", "", "upload chunk size (e.g. 8MiB)")
	cmd.Flags().String("bandwidth-limit", "", "upload bandwidth cap (e.g. 5MB/s, 0 = unlimited)")
	cmd.Flags().Bool("verify", false, "verify MD5 checksums of completed uploads")
	cmd.Flags().String("journal-path", "", "journal database path")
	cmd.Flags().Bool("no-journal", false, "do not record this run in the journal")

	return cmd
}

// buildRemote constructs the Drive-backed remote from the resolved
// transfer config.
func buildRemote(client *drive.Client, logger *slog.Logger) (*replicate.DriveRemote, error) {
	chunkSize, err := config.ParseSize(resolvedCfg.Transfer.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid chunk size: %w", err)
	}

	limiter, err := drive.NewLimiter(resolvedCfg.Transfer.BandwidthLimit)
	if err != nil {
		return nil, err
	}

	return replicate.NewDriveRemote(client, replicate.DriveRemoteOptions{
		ChunkSize: chunkSize,
		Limiter:   limiter,
		VerifyMD5: resolvedCfg.Transfer.VerifyChecksums,
	}, logger), nil
}

// replicationJob wires a replicator to its event consumers: the
// terminal renderer, the journal, and the optional WebSocket feed. One
// job serves sequential runs, which is what watch mode needs.
type replicationJob struct {
	replicator *replicate.TreeReplicator
	renderer   *progressRenderer
	journal    *journal.Journal
	feed       *eventFeed
	logger     *slog.Logger
}

// newReplicationJob assembles the consumers around a remote. The
// journal opens unless disabled; the feed starts when an address is
// given.
func newReplicationJob(ctx context.Context, remote replicate.RemoteClient, feedAddr string, logger *slog.Logger) (*replicationJob, error) {
	job := &replicationJob{
		replicator: replicate.NewTreeReplicator(remote, logger),
		renderer:   newProgressRenderer(flagQuiet),
		logger:     logger,
	}

	if !resolvedCfg.Journal.Disabled {
		j, err := journal.Open(resolvedCfg.Journal.Path, logger)
		if err != nil {
			return nil, err
		}

		job.journal = j
	}

	if feedAddr != "" {
		feed, err := startEventFeed(ctx, feedAddr, logger)
		if err != nil {
			job.close()
			return nil, err
		}

		job.feed = feed
	}

	return job, nil
}

// close releases the job's journal and feed.
func (job *replicationJob) close() {
	if job.feed != nil {
		job.feed.Close()
		job.feed = nil
	}

	if job.journal != nil {
		job.journal.Close()
		job.journal = nil
	}
}

// run executes one replication run and consumes its event stream until
// the FinishedEvent. The engine runs on a separate goroutine; this
// goroutine drives the renderer, journal, and feed.
func (job *replicationJob) run(ctx context.Context, localRoot, destID string) (replicate.Result, error) {
	runID := job.beginJournalRun(ctx, localRoot, destID)

	resultCh := make(chan replicate.Result, 1)
	errCh := make(chan error, 1)

	go func() {
		result, err := job.replicator.Run(ctx, localRoot, destID)
		resultCh <- result
		errCh <- err
	}()

	job.consumeEvents(runID)

	result := <-resultCh
	err := <-errCh

	// The run may have ended because ctx was cancelled; the closing
	// journal write still has to land.
	job.finishJournalRun(context.Background(), runID, result, err)

	return result, err
}

// consumeEvents drains the replicator's stream until the run finishes.
// Journal writes use a background context so a cancelled run still gets
// its closing records.
func (job *replicationJob) consumeEvents(runID string) {
	ctx := context.Background()

	var agg *replicate.ProgressAggregator

	for ev := range job.replicator.Events() {
		job.renderer.Handle(ev)

		if job.feed != nil {
			job.feed.Broadcast(ev)
		}

		switch e := ev.(type) {
		case replicate.ScanCompleteEvent:
			if e.FileCount >= 0 {
				agg = replicate.NewProgressAggregator(e.FileCount, e.TotalBytes)
				job.recordScanTotals(ctx, runID, e)
			}
		case replicate.FileProgressEvent:
			if agg != nil && job.feed != nil {
				job.feed.Broadcast(agg.Observe(e))
			}
		case replicate.FileOutcomeEvent:
			job.recordTransfer(ctx, runID, e)
		case replicate.FinishedEvent:
			return
		}
	}
}

// Journal writes never fail a run; problems are logged and the run
// continues.

func (job *replicationJob) beginJournalRun(ctx context.Context, localRoot, destID string) string {
	if job.journal == nil {
		return ""
	}

	runID, err := job.journal.BeginRun(ctx, localRoot, destID)
	if err != nil {
		job.logger.Warn("journal: recording run start failed", slog.String("error", err.Error()))
		return ""
	}

	return runID
}

func (job *replicationJob) recordScanTotals(ctx context.Context, runID string, e replicate.ScanCompleteEvent) {
	if job.journal == nil || runID == "" {
		return
	}

	if err := job.journal.SetScanTotals(ctx, runID, e.FileCount, e.TotalBytes); err != nil {
		job.logger.Warn("journal: recording scan totals failed", slog.String("error", err.Error()))
	}
}

func (job *replicationJob) recordTransfer(ctx context.Context, runID string, e replicate.FileOutcomeEvent) {
	if job.journal == nil || runID == "" {
		return
	}

	t := journal.Transfer{
		RunID:   runID,
		Path:    e.Path,
		Size:    e.Size,
		Outcome: string(e.Outcome),
	}
	if e.Err != nil {
		t.Error = e.Err.Error()
	}

	if err := job.journal.RecordTransfer(ctx, t); err != nil {
		job.logger.Warn("journal: recording transfer failed", slog.String("error", err.Error()))
	}
}

func (job *replicationJob) finishJournalRun(ctx context.Context, runID string, result replicate.Result, runErr error) {
	if job.journal == nil || runID == "" {
		return
	}

	message := "complete"

	switch {
	case runErr != nil:
		message = runErr.Error()
	case !result.Success:
		message = "cancelled"
	}

	err := job.journal.FinishRun(ctx, runID, result.Success, result.FilesUploaded, result.BytesUploaded, message)
	if err != nil {
		job.logger.Warn("journal: recording run finish failed", slog.String("error", err.Error()))
	}
}
