package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mvasconcellos/driveup/internal/replicate"
)

// statusf prints an informational line to stdout unless --quiet is set.
func statusf(format string, args ...any) {
	if flagQuiet {
		return
	}

	fmt.Printf(format+"\n", args...)
}

// newTable returns a tabwriter for aligned columnar output.
func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
}

// printRow writes one tab-separated row to a table.
func printRow(w *tabwriter.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}

// formatSize renders a byte count for display.
func formatSize(bytes int64) string {
	return replicate.FormatSize(bytes)
}

// formatTime renders a timestamp in the local timezone, or a dash for
// the zero value.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format("2006-01-02 15:04:05")
}

// formatDuration renders an elapsed duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	total := int64(d.Seconds())

	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// formatETA renders a remaining-time estimate, or dashes when no
// estimate is available yet.
func formatETA(d time.Duration, ok bool) string {
	if !ok {
		return "--:--:--"
	}

	return formatDuration(d)
}
