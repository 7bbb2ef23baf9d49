package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvasconcellos/driveup/internal/config"
	"github.com/mvasconcellos/driveup/internal/journal"
	"github.com/mvasconcellos/driveup/internal/tokenfile"
)

// newStatusCmd reports login state, effective paths, and the last
// journaled run.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show login state, paths, and the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}

			logger := buildLogger()

			tok, meta, err := tokenfile.Load(resolvedCfg.Auth.TokenPath)
			if err != nil {
				return fmt.Errorf("reading token file: %w", err)
			}

			configPath := flagConfigPath
			if configPath == "" {
				configPath = config.DefaultConfigPath()
			}

			table := newTable()

			if tok == nil {
				printRow(table, "Logged in:", "no")
			} else {
				printRow(table, "Logged in:", "yes")

				if email := meta["email"]; email != "" {
					printRow(table, "Account:", email)
				}

				if !tok.Expiry.IsZero() {
					printRow(table, "Token expires:", formatTime(tok.Expiry))
				}
			}

			printRow(table, "Config:", configPath)
			printRow(table, "Token:", resolvedCfg.Auth.TokenPath)

			if resolvedCfg.Journal.Disabled {
				printRow(table, "Journal:", "disabled")
			} else {
				printRow(table, "Journal:", resolvedCfg.Journal.Path)
			}

			if err := table.Flush(); err != nil {
				return err
			}

			return printLastRun(cmd, logger)
		},
	}
}

// printLastRun appends the most recent journal entry to the status
// output. A missing or disabled journal is not an error here.
func printLastRun(cmd *cobra.Command, logger *slog.Logger) error {
	if resolvedCfg.Journal.Disabled {
		return nil
	}

	if _, err := os.Stat(resolvedCfg.Journal.Path); err != nil {
		return nil
	}

	j, err := journal.Open(resolvedCfg.Journal.Path, logger)
	if err != nil {
		logger.Warn("could not open journal", "error", err.Error())
		return nil
	}
	defer j.Close()

	run, ok, err := j.LastRun(cmd.Context())
	if err != nil || !ok {
		return err
	}

	fmt.Println()

	table := newTable()
	printRow(table, "Last run:", run.ID[:8])
	printRow(table, "Started:", formatTime(run.StartedAt))

	if run.FinishedAt.IsZero() {
		printRow(table, "Result:", "unfinished")
	} else if run.Success {
		printRow(table, "Result:", fmt.Sprintf("ok (%d files, %s)", run.FilesUploaded, formatSize(run.BytesUploaded)))
	} else {
		printRow(table, "Result:", "failed: "+run.Message)
	}

	return table.Flush()
}
