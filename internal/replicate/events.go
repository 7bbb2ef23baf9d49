// Package replicate mirrors a local directory tree into a remote
// folder hierarchy: folders are resolved or created on demand, files
// are uploaded in resumable chunks, and the run reports its life cycle
// through a typed event stream.
package replicate

// Event is the interface implemented by all replication events.
type Event interface {
	isEvent()
}

// Scan phase events

// ScanCompleteEvent is emitted once per run when the pre-pass finishes.
// FileCount == -1 means the scan was cancelled and no totals exist.
type ScanCompleteEvent struct {
	FileCount  int
	TotalBytes int64
}

func (ScanCompleteEvent) isEvent() {}

// Transfer phase events

// StatusEvent carries a short human-readable phase description.
type StatusEvent struct {
	Message string
}

func (StatusEvent) isEvent() {}

// FolderEvent is emitted when the walk enters a directory. Path is
// relative to the replication root; the root itself is its base name.
type FolderEvent struct {
	Path string
}

func (FolderEvent) isEvent() {}

// FileProgressEvent reports upload progress for one file. Percent is
// strictly increasing per file within a run and ends at 100 for every
// file that completes. Path is root-relative, so it is unique even when
// base names repeat across directories.
type FileProgressEvent struct {
	Path    string
	Percent int
	Size    int64
}

func (FileProgressEvent) isEvent() {}

// FileOutcomeEvent reports the terminal state of one file's transfer.
// Err is nil unless Outcome is OutcomeFailed.
type FileOutcomeEvent struct {
	Path    string
	Size    int64
	Outcome Outcome
	Err     error
}

func (FileOutcomeEvent) isEvent() {}

// Run completion events

// FatalErrorEvent reports a run-aborting condition, as opposed to a
// per-file failure. It is always followed by a FinishedEvent.
type FatalErrorEvent struct {
	Message string
}

func (FatalErrorEvent) isEvent() {}

// FinishedEvent is emitted exactly once per run, always last. Totals
// count files that reached OutcomeCompleted or OutcomeConflictSkipped,
// each contributing its full size.
type FinishedEvent struct {
	Success       bool
	FilesUploaded int
	BytesUploaded int64
}

func (FinishedEvent) isEvent() {}

// OverallProgressEvent is synthesized by the ProgressAggregator, not
// the replicator: cumulative progress derived from file-progress events
// using the floor(percent/100*size) byte approximation.
type OverallProgressEvent struct {
	FilesDone int
	BytesDone int64
}

func (OverallProgressEvent) isEvent() {}
