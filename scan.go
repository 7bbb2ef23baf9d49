package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvasconcellos/driveup/internal/replicate"
)

// newScanCmd runs the pre-pass scanner alone and prints its totals.
func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>",
		Short: "Count files and bytes that a push would upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger()

			result, err := replicate.Scan(cmd.Context(), args[0], nil, logger)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(map[string]any{
					"files": result.Files,
					"bytes": result.Bytes,
				})
			}

			fmt.Printf("%d files, %s\n", result.Files, formatSize(result.Bytes))

			return nil
		},
	}
}
