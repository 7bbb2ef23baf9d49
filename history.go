package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mvasconcellos/driveup/internal/journal"
)

// historyLimit caps the default run listing.
const historyLimit = 20

// newHistoryCmd lists recent runs from the journal, or one run's
// per-file transfers when given a run id prefix.
func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent replication runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if resolvedCfg.Journal.Disabled {
				return errors.New("journal is disabled")
			}

			logger := buildLogger()

			j, err := journal.Open(resolvedCfg.Journal.Path, logger)
			if err != nil {
				return err
			}
			defer j.Close()

			if len(args) == 1 {
				return showRun(cmd, j, args[0])
			}

			return listRuns(cmd, j)
		},
	}
}

// listRuns prints the recent-runs table.
func listRuns(cmd *cobra.Command, j *journal.Journal) error {
	runs, err := j.ListRuns(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(runs)
	}

	if len(runs) == 0 {
		statusf("No runs recorded.")
		return nil
	}

	table := newTable()
	printRow(table, "RUN", "STARTED", "RESULT", "FILES", "SIZE", "ROOT")

	for _, run := range runs {
		printRow(table,
			run.ID[:8],
			formatTime(run.StartedAt),
			runResult(run),
			strconv.Itoa(run.FilesUploaded),
			formatSize(run.BytesUploaded),
			run.LocalRoot,
		)
	}

	return table.Flush()
}

// showRun prints one run's header and per-file transfer list.
func showRun(cmd *cobra.Command, j *journal.Journal, idPrefix string) error {
	run, err := j.GetRun(cmd.Context(), idPrefix)
	if err != nil {
		return err
	}

	transfers, err := j.Transfers(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(map[string]any{"run": run, "transfers": transfers})
	}

	header := newTable()
	printRow(header, "Run:", run.ID)
	printRow(header, "Root:", run.LocalRoot)
	printRow(header, "Destination:", run.DestID)
	printRow(header, "Started:", formatTime(run.StartedAt))
	printRow(header, "Finished:", formatTime(run.FinishedAt))
	printRow(header, "Result:", runResult(run))
	printRow(header, "Scanned:", fmt.Sprintf("%d files, %s", run.ScanFiles, formatSize(run.ScanBytes)))
	printRow(header, "Uploaded:", fmt.Sprintf("%d files, %s", run.FilesUploaded, formatSize(run.BytesUploaded)))

	if err := header.Flush(); err != nil {
		return err
	}

	if len(transfers) == 0 {
		return nil
	}

	fmt.Println()

	table := newTable()
	printRow(table, "OUTCOME", "SIZE", "PATH")

	for _, t := range transfers {
		detail := t.Path
		if t.Error != "" {
			detail += " (" + t.Error + ")"
		}

		printRow(table, t.Outcome, formatSize(t.Size), detail)
	}

	return table.Flush()
}

// runResult renders a run's outcome for table display.
func runResult(run journal.Run) string {
	switch {
	case run.FinishedAt.IsZero():
		return "unfinished"
	case run.Success:
		return "ok"
	default:
		return "failed"
	}
}
