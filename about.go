package main

import (
	"github.com/spf13/cobra"
)

// newAboutCmd shows the authenticated account and its storage quota.
func newAboutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Show account identity and storage quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := buildLogger()

			client, err := newDriveClient(ctx, logger)
			if err != nil {
				return err
			}

			about, err := client.About(ctx)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(map[string]any{
					"user":     about.UserName,
					"email":    about.UserEmail,
					"limit":    about.Limit,
					"usage":    about.Usage,
					"in_drive": about.InDrive,
					"in_trash": about.InTrash,
				})
			}

			table := newTable()
			printRow(table, "User:", about.UserName)
			printRow(table, "Email:", about.UserEmail)

			if about.Limit > 0 {
				printRow(table, "Quota:", formatSize(about.Limit))
			} else {
				printRow(table, "Quota:", "unlimited")
			}

			printRow(table, "Used:", formatSize(about.Usage))
			printRow(table, "In Drive:", formatSize(about.InDrive))
			printRow(table, "In trash:", formatSize(about.InTrash))

			return table.Flush()
		},
	}
}
