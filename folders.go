package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// newLsCmd lists the child folders of a remote path.
func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [remote/path]",
		Short: "List child folders of a remote path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := buildLogger()

			client, err := newDriveClient(ctx, logger)
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			folder, err := resolveFolderPath(ctx, client, path)
			if err != nil {
				return err
			}

			children, err := client.ListChildFolders(ctx, folder.ID)
			if err != nil {
				return fmt.Errorf("listing %q: %w", folder.Name, err)
			}

			if flagJSON {
				type row struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				}

				rows := make([]row, 0, len(children))
				for _, child := range children {
					rows = append(rows, row{ID: child.ID, Name: child.Name})
				}

				return printJSON(rows)
			}

			table := newTable()
			printRow(table, "NAME", "ID")

			for _, child := range children {
				printRow(table, child.Name, child.ID)
			}

			return table.Flush()
		},
	}
}

// newMkdirCmd creates a remote folder path, making missing segments.
func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <remote/path>",
		Short: "Create a remote folder path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := buildLogger()

			client, err := newDriveClient(ctx, logger)
			if err != nil {
				return err
			}

			folder, err := ensureFolderPath(ctx, client, args[0])
			if err != nil {
				return err
			}

			if folder.ID == rootFolderID {
				return fmt.Errorf("mkdir: path %q names the Drive root", args[0])
			}

			if flagJSON {
				return printJSON(map[string]string{"id": folder.ID, "name": folder.Name})
			}

			statusf("Created %s (%s)", strings.Trim(args[0], "/"), folder.ID)

			return nil
		},
	}
}

// newDuCmd summarizes a remote folder's direct contents.
func newDuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "du [remote/path]",
		Short: "Summarize a remote folder's contents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := buildLogger()

			client, err := newDriveClient(ctx, logger)
			if err != nil {
				return err
			}

			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			folder, err := resolveFolderPath(ctx, client, path)
			if err != nil {
				return err
			}

			summary, err := client.SummarizeFolder(ctx, folder.ID)
			if err != nil {
				return fmt.Errorf("summarizing %q: %w", folder.Name, err)
			}

			if flagJSON {
				return printJSON(map[string]any{
					"id":      folder.ID,
					"folders": summary.Folders,
					"files":   summary.Files,
					"bytes":   summary.Bytes,
				})
			}

			table := newTable()
			printRow(table, "Folders:", strconv.Itoa(summary.Folders))
			printRow(table, "Files:", strconv.Itoa(summary.Files))
			printRow(table, "Size:", formatSize(summary.Bytes))

			return table.Flush()
		},
	}
}

// newRmCmd moves a remote folder to the Drive trash.
func newRmCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <remote/path>",
		Short: "Move a remote folder to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := buildLogger()

			client, err := newDriveClient(ctx, logger)
			if err != nil {
				return err
			}

			folder, err := resolveFolderPath(ctx, client, args[0])
			if err != nil {
				return err
			}

			if folder.ID == rootFolderID {
				return fmt.Errorf("rm: refusing to trash the Drive root")
			}

			if !force {
				summary, err := client.SummarizeFolder(ctx, folder.ID)
				if err != nil {
					return fmt.Errorf("summarizing %q: %w", folder.Name, err)
				}

				if summary.Folders > 0 || summary.Files > 0 {
					prompt := fmt.Sprintf("%q contains %d folders and %d files (%s). Move to trash? [y/N] ",
						folder.Name, summary.Folders, summary.Files, formatSize(summary.Bytes))

					if !confirm(prompt) {
						statusf("Aborted.")
						return nil
					}
				}
			}

			if err := client.TrashFile(ctx, folder.ID); err != nil {
				return err
			}

			statusf("Moved %s to trash.", folder.Name)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip the non-empty confirmation")

	return cmd
}

// confirm prompts on stdout and reads a yes/no answer from stdin.
func confirm(prompt string) bool {
	fmt.Print(prompt)

	reader := bufio.NewReader(os.Stdin)

	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "y" || answer == "yes"
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
