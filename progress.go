package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/mvasconcellos/driveup/internal/replicate"
)

// progressRenderer turns the replication event stream into terminal
// output. On a TTY it maintains a single rewriting status line; when
// piped it prints plain lines, one per meaningful event.
type progressRenderer struct {
	out   io.Writer
	tty   bool
	quiet bool

	agg        *replicate.ProgressAggregator
	totalFiles int
	totalBytes int64
	lineWidth  int
}

// newProgressRenderer builds a renderer for stdout, detecting whether it
// is a terminal.
func newProgressRenderer(quiet bool) *progressRenderer {
	return &progressRenderer{
		out:   os.Stdout,
		tty:   isatty.IsTerminal(os.Stdout.Fd()),
		quiet: quiet,
	}
}

// Handle renders one event. Driven from the single event-consumer
// goroutine.
func (p *progressRenderer) Handle(ev replicate.Event) {
	if p.quiet {
		return
	}

	switch e := ev.(type) {
	case replicate.ScanCompleteEvent:
		p.handleScanComplete(e)
	case replicate.StatusEvent:
		p.printLine(e.Message)
	case replicate.FolderEvent:
		if !p.tty {
			fmt.Fprintf(p.out, "Entering: %s\n", e.Path)
		}
	case replicate.FileProgressEvent:
		p.handleFileProgress(e)
	case replicate.FileOutcomeEvent:
		p.handleFileOutcome(e)
	case replicate.FatalErrorEvent:
		p.printLine("Error: " + e.Message)
	case replicate.FinishedEvent:
		p.handleFinished(e)
	}
}

func (p *progressRenderer) handleScanComplete(e replicate.ScanCompleteEvent) {
	if e.FileCount < 0 {
		p.printLine("Scan cancelled.")
		return
	}

	p.totalFiles = e.FileCount
	p.totalBytes = e.TotalBytes
	p.agg = replicate.NewProgressAggregator(e.FileCount, e.TotalBytes)

	p.printLine(fmt.Sprintf("Found %d files (%s)", e.FileCount, formatSize(e.TotalBytes)))
}

func (p *progressRenderer) handleFileProgress(e replicate.FileProgressEvent) {
	if p.agg == nil {
		return
	}

	overall := p.agg.Observe(e)

	if !p.tty {
		// Piped output stays quiet between outcomes; per-chunk noise
		// helps nobody reading a log.
		return
	}

	eta, ok := p.agg.ETA()
	line := fmt.Sprintf("%3d%%  %s  %d/%d files  %s/%s  %s/s  ETA %s",
		e.Percent,
		e.Path,
		overall.FilesDone, p.totalFiles,
		formatSize(overall.BytesDone), formatSize(p.totalBytes),
		formatSize(int64(p.agg.Rate())),
		formatETA(eta, ok),
	)
	p.rewriteLine(line)
}

func (p *progressRenderer) handleFileOutcome(e replicate.FileOutcomeEvent) {
	if p.tty {
		return
	}

	switch e.Outcome {
	case replicate.OutcomeCompleted:
		fmt.Fprintf(p.out, "Uploaded: %s (%s)\n", e.Path, formatSize(e.Size))
	case replicate.OutcomeConflictSkipped:
		fmt.Fprintf(p.out, "Skipped (already exists): %s\n", e.Path)
	case replicate.OutcomeFailed:
		fmt.Fprintf(p.out, "Failed: %s: %v\n", e.Path, e.Err)
	case replicate.OutcomeCancelled:
		fmt.Fprintf(p.out, "Cancelled: %s\n", e.Path)
	}
}

func (p *progressRenderer) handleFinished(e replicate.FinishedEvent) {
	p.clearLine()

	if e.Success {
		elapsed := "0s"
		if p.agg != nil {
			elapsed = formatDuration(p.agg.Elapsed())
		}

		fmt.Fprintf(p.out, "Done: %d files, %s in %s\n",
			e.FilesUploaded, formatSize(e.BytesUploaded), elapsed)

		return
	}

	fmt.Fprintf(p.out, "Stopped: %d files, %s uploaded\n",
		e.FilesUploaded, formatSize(e.BytesUploaded))
}

// printLine prints a full line, first clearing any live status line.
func (p *progressRenderer) printLine(s string) {
	p.clearLine()
	fmt.Fprintln(p.out, s)
}

// rewriteLine redraws the live status line in place.
func (p *progressRenderer) rewriteLine(s string) {
	if pad := p.lineWidth - len(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}

	fmt.Fprintf(p.out, "\r%s", s)
	p.lineWidth = len(s)
}

// clearLine erases the live status line so full lines print cleanly.
func (p *progressRenderer) clearLine() {
	if !p.tty || p.lineWidth == 0 {
		return
	}

	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", p.lineWidth))
	p.lineWidth = 0
}
