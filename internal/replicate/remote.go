package replicate

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrConflict is returned by CreateFileResumable when the remote
// already holds a non-trashed object with the requested name under the
// requested parent. The engine treats it as success-with-skip.
var ErrConflict = errors.New("replicate: remote object already exists")

// ErrCancelled is returned by operations interrupted through the
// cooperative cancellation flag.
var ErrCancelled = errors.New("replicate: cancelled")

// RemoteClient is the storage boundary the engine drives. Implementations
// own transport-level concerns (auth, retry, backoff); errors that reach
// the engine are post-retry and final for the operation.
type RemoteClient interface {
	// LookupOrCreateFolder returns the id of the folder named name
	// directly under parentID, creating it when no match exists. When
	// several remote folders share the name, the first match in
	// remote-reported order wins.
	LookupOrCreateFolder(ctx context.Context, parentID, name string) (string, error)

	// CreateFileResumable opens an upload session for a new file whose
	// bytes are drawn from content. Returns ErrConflict without opening
	// a session when the name is already taken under spec.ParentID.
	CreateFileResumable(ctx context.Context, spec UploadSpec, content io.Reader) (UploadSession, error)

	// ListChildFolders returns the non-trashed folders directly under
	// parentID in remote-defined order.
	ListChildFolders(ctx context.Context, parentID string) ([]FolderRef, error)

	// SummarizeFolderContents aggregates the direct children of a folder.
	SummarizeFolderContents(ctx context.Context, folderID string) (FolderSummary, error)

	// CreateFolder unconditionally creates a folder under parentID.
	CreateFolder(ctx context.Context, parentID, name string) (FolderRef, error)

	// TrashFolder moves a folder and its contents to the remote trash.
	TrashFolder(ctx context.Context, folderID string) error
}

// UploadSession is one file's in-flight resumable upload.
type UploadSession interface {
	// AdvanceChunk transfers the next chunk. fraction is confirmed
	// progress in [0, 1]; final is non-nil exactly once, on the call
	// that completes the upload.
	AdvanceChunk(ctx context.Context) (fraction float64, final *FileInfo, err error)

	// Abort cancels the session. Safe to call on a session that never
	// advanced.
	Abort(ctx context.Context) error
}

// UploadSpec describes the file a session will create.
type UploadSpec struct {
	ParentID    string
	Name        string
	ContentType string
	Size        int64
	ModifiedAt  time.Time
	CreatedAt   time.Time
}

// FolderRef identifies a remote folder.
type FolderRef struct {
	ID   string
	Name string
}

// FolderSummary aggregates the direct children of a remote folder.
// DirectFileBytes sums only files, not subfolder contents.
type FolderSummary struct {
	FolderCount     int
	FileCount       int
	DirectFileBytes int64
}

// FileInfo describes a remote file after upload.
type FileInfo struct {
	ID   string
	Name string
	Size int64
}

// Outcome is the terminal state of one file's transfer.
type Outcome string

const (
	OutcomePending         Outcome = "pending"
	OutcomeUploading       Outcome = "uploading"
	OutcomeCompleted       Outcome = "completed"
	OutcomeConflictSkipped Outcome = "conflict_skipped"
	OutcomeFailed          Outcome = "failed"
	OutcomeCancelled       Outcome = "cancelled"
)

// Counted reports whether the outcome contributes the file's size to
// run totals.
func (o Outcome) Counted() bool {
	return o == OutcomeCompleted || o == OutcomeConflictSkipped
}

// Terminal reports whether the outcome ends the file's state machine.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeCompleted, OutcomeConflictSkipped, OutcomeFailed, OutcomeCancelled:
		return true
	default:
		return false
	}
}
