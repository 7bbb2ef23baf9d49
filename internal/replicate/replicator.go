package replicate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
)

// eventBuffer sizes the event channel. Large enough that a consumer
// doing modest work per event never stalls the walk.
const eventBuffer = 64

// Result summarizes a finished replication run. Totals count files that
// reached OutcomeCompleted or OutcomeConflictSkipped, each contributing
// its full size.
type Result struct {
	Success       bool
	FilesUploaded int
	BytesUploaded int64
}

// ErrRunActive is returned by Run when the replicator already has a run
// in flight. One instance supports at most one run at a time.
var ErrRunActive = errors.New("replicate: a run is already active")

// TreeReplicator mirrors a local directory tree into a remote folder.
// It owns the folder resolution cache, the uploader, the cooperative
// cancellation flag, and the event channel consumers read from. A single
// instance may be reused for sequential runs but never for concurrent
// ones.
type TreeReplicator struct {
	client   RemoteClient
	cache    *FolderResolutionCache
	uploader *Uploader
	logger   *slog.Logger

	events  chan Event
	stop    atomic.Bool
	running atomic.Bool
}

// NewTreeReplicator creates a replicator that uploads through client.
func NewTreeReplicator(client RemoteClient, logger *slog.Logger) *TreeReplicator {
	return &TreeReplicator{
		client:   client,
		cache:    NewFolderResolutionCache(client),
		uploader: NewUploader(client, logger),
		logger:   logger,
		events:   make(chan Event, eventBuffer),
	}
}

// Events returns the channel the replicator reports on. The channel is
// never closed; every run ends with exactly one FinishedEvent.
func (r *TreeReplicator) Events() <-chan Event {
	return r.events
}

// Cancel requests cooperative cancellation of the active run. Safe to
// call from any goroutine, any number of times; a no-op when no run is
// active. The flag is reset at the start of the next run.
func (r *TreeReplicator) Cancel() {
	r.stop.Store(true)
}

// interrupted reports whether cancellation has been requested.
func (r *TreeReplicator) interrupted() bool {
	return r.stop.Load()
}

// runState carries the mutable state of one replication run.
type runState struct {
	root      string
	folderIDs map[string]string // absolute local dir path -> remote folder id

	filesUploaded int
	bytesUploaded int64
}

// Run replicates the tree rooted at localRoot into the remote folder
// remoteRootID. It blocks until the run ends and reports the same totals
// the run's FinishedEvent carries. Cancellation yields Success=false
// with a nil error; fatal conditions yield a non-nil error after a
// FatalErrorEvent.
func (r *TreeReplicator) Run(ctx context.Context, localRoot, remoteRootID string) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.emit(FatalErrorEvent{Message: "a replication run is already active"})
		r.emit(FinishedEvent{})

		return Result{}, ErrRunActive
	}
	defer r.running.Store(false)

	r.stop.Store(false)
	r.cache.Reset()

	result, err := r.run(ctx, localRoot, remoteRootID)

	r.emit(FinishedEvent{
		Success:       result.Success,
		FilesUploaded: result.FilesUploaded,
		BytesUploaded: result.BytesUploaded,
	})

	return result, err
}

// run executes the scan and walk phases. It owns panic recovery so a
// bug in the walk surfaces as a fatal event instead of tearing down the
// caller.
func (r *TreeReplicator) run(ctx context.Context, localRoot, remoteRootID string) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("replication run panicked", slog.Any("panic", rec))
			r.emit(FatalErrorEvent{Message: fmt.Sprintf("unexpected error: %v", rec)})

			result.Success = false
			err = fmt.Errorf("replicate: run panicked: %v", rec)
		}
	}()

	r.emit(StatusEvent{Message: "Scanning local directory..."})

	scan, err := Scan(ctx, localRoot, r.interrupted, r.logger)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			r.emit(ScanCompleteEvent{FileCount: -1, TotalBytes: -1})

			return Result{}, nil
		}

		r.emit(FatalErrorEvent{Message: err.Error()})

		return Result{}, err
	}

	r.emit(ScanCompleteEvent{FileCount: scan.Files, TotalBytes: scan.Bytes})

	if scan.Files == 0 {
		r.emit(StatusEvent{Message: "No files to upload."})

		return Result{Success: true}, nil
	}

	r.emit(StatusEvent{Message: "Starting upload..."})

	root, err := filepath.Abs(localRoot)
	if err != nil {
		r.emit(FatalErrorEvent{Message: err.Error()})

		return Result{}, fmt.Errorf("replicate: resolving %s: %w", localRoot, err)
	}

	state := &runState{
		root:      root,
		folderIDs: map[string]string{root: remoteRootID},
	}

	if walkErr := r.walk(ctx, state, root); walkErr != nil {
		result = Result{FilesUploaded: state.filesUploaded, BytesUploaded: state.bytesUploaded}

		if errors.Is(walkErr, ErrCancelled) {
			r.logger.Info("replication cancelled",
				slog.Int("files_uploaded", state.filesUploaded),
				slog.Int64("bytes_uploaded", state.bytesUploaded),
			)
			r.emit(StatusEvent{Message: "Upload cancelled."})

			return result, nil
		}

		r.emit(FatalErrorEvent{Message: walkErr.Error()})

		return result, walkErr
	}

	r.logger.Info("replication complete",
		slog.Int("files_uploaded", state.filesUploaded),
		slog.Int64("bytes_uploaded", state.bytesUploaded),
	)

	return Result{
		Success:       true,
		FilesUploaded: state.filesUploaded,
		BytesUploaded: state.bytesUploaded,
	}, nil
}

// walk processes dir and recurses into its resolved subdirectories,
// pre-order, children in lexicographic name order. Per-file failures and
// unresolvable folders are absorbed here; only cancellation propagates.
func (r *TreeReplicator) walk(ctx context.Context, state *runState, dir string) error {
	if cancelled(ctx, r.interrupted) {
		return ErrCancelled
	}

	r.emit(FolderEvent{Path: state.displayPath(dir)})

	parentID, ok := state.folderIDs[dir]
	if !ok {
		// An ancestor failed to resolve. Nothing below here can have a
		// remote parent, so the whole subtree is skipped.
		r.logger.Error("no remote folder id for directory, skipping subtree",
			slog.String("path", dir),
		)

		return nil
	}

	subdirs, files, err := readDirSplit(dir)
	if err != nil {
		r.logger.Error("listing directory, skipping subtree",
			slog.String("path", dir),
			slog.String("error", err.Error()),
		)

		return nil
	}

	for _, name := range subdirs {
		if cancelled(ctx, r.interrupted) {
			return ErrCancelled
		}

		childPath := filepath.Join(dir, name)

		childID, err := r.cache.ResolveOrCreate(ctx, parentID, name)
		if err != nil {
			r.logger.Error("resolving remote folder, its contents will be skipped",
				slog.String("name", name),
				slog.String("parent_id", parentID),
				slog.String("error", err.Error()),
			)

			continue
		}

		state.folderIDs[childPath] = childID
	}

	for _, name := range files {
		if cancelled(ctx, r.interrupted) {
			return ErrCancelled
		}

		if outcome := r.uploadFile(ctx, state, filepath.Join(dir, name), parentID); outcome == OutcomeCancelled {
			return ErrCancelled
		}
	}

	for _, name := range subdirs {
		childPath := filepath.Join(dir, name)
		if _, resolved := state.folderIDs[childPath]; !resolved {
			continue
		}

		if err := r.walk(ctx, state, childPath); err != nil {
			return err
		}
	}

	return nil
}

// uploadFile transfers one file and folds its outcome into the run
// totals. Failures are absorbed so the walk continues with siblings;
// the outcome is returned so a cancellation observed inside the chunk
// loop still ends the walk.
func (r *TreeReplicator) uploadFile(ctx context.Context, state *runState, path, parentID string) Outcome {
	rel := state.displayPath(path)

	r.emit(StatusEvent{Message: fmt.Sprintf("Uploading: %s", filepath.Base(path))})

	outcome, size, err := r.uploader.Upload(ctx, path, parentID, r.interrupted, func(percent int, fileSize int64) {
		r.emit(FileProgressEvent{Path: rel, Percent: percent, Size: fileSize})
	})

	r.emit(FileOutcomeEvent{Path: rel, Size: size, Outcome: outcome, Err: err})

	if err != nil {
		r.logger.Error("file upload failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	if outcome.Counted() {
		state.filesUploaded++
		state.bytesUploaded += size
	}

	return outcome
}

// displayPath renders a path relative to the run root for events. The
// root itself displays as its own base name.
func (s *runState) displayPath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." {
		return filepath.Base(s.root)
	}

	return rel
}

// readDirSplit lists dir's immediate children, split into directory and
// regular-file names, each sorted lexicographically. Symbolic links are
// omitted, matching the scan pass.
func readDirSplit(dir string) (subdirs, files []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	for _, entry := range entries {
		switch {
		case entry.IsDir():
			subdirs = append(subdirs, entry.Name())
		case entry.Type().IsRegular():
			files = append(files, entry.Name())
		}
	}

	sort.Strings(subdirs)
	sort.Strings(files)

	return subdirs, files, nil
}

// emit delivers an event to the consumer, blocking until accepted.
func (r *TreeReplicator) emit(ev Event) {
	r.events <- ev
}
