package replicate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/mvasconcellos/driveup/internal/drive"
)

// DriveRemote adapts the Drive API client to the RemoteClient boundary
// the engine consumes.
type DriveRemote struct {
	client    *drive.Client
	chunkSize int64
	limiter   *rate.Limiter
	verify    bool
	logger    *slog.Logger
}

// DriveRemoteOptions tunes transfer behavior. Zero values select the
// Drive client's defaults: no bandwidth limit, no checksum verification.
type DriveRemoteOptions struct {
	ChunkSize int64
	Limiter   *rate.Limiter
	VerifyMD5 bool
}

// NewDriveRemote wraps a Drive client as a RemoteClient.
func NewDriveRemote(client *drive.Client, opts DriveRemoteOptions, logger *slog.Logger) *DriveRemote {
	return &DriveRemote{
		client:    client,
		chunkSize: opts.ChunkSize,
		limiter:   opts.Limiter,
		verify:    opts.VerifyMD5,
		logger:    logger,
	}
}

// LookupOrCreateFolder finds a non-trashed folder named name directly
// under parentID, creating it when no match exists. Duplicate names
// resolve to the first match in API-reported order.
func (d *DriveRemote) LookupOrCreateFolder(ctx context.Context, parentID, name string) (string, error) {
	found, err := d.client.FindFolder(ctx, parentID, name)
	if err == nil {
		d.logger.Debug("folder found",
			slog.String("name", name),
			slog.String("id", found.ID),
		)

		return found.ID, nil
	}

	if !errors.Is(err, drive.ErrNotFound) {
		return "", fmt.Errorf("looking up folder %q: %w", name, err)
	}

	created, err := d.client.CreateFolder(ctx, parentID, name)
	if err != nil {
		return "", fmt.Errorf("creating folder %q: %w", name, err)
	}

	d.logger.Info("folder created",
		slog.String("name", name),
		slog.String("id", created.ID),
	)

	return created.ID, nil
}

// CreateFileResumable opens a resumable upload session for a new file.
// Drive tolerates duplicate names, so idempotence is enforced here: an
// existing non-trashed file of the same name under the same parent maps
// to ErrConflict before any session is opened. An HTTP 409 from the API
// maps to the same sentinel.
func (d *DriveRemote) CreateFileResumable(ctx context.Context, spec UploadSpec, content io.Reader) (UploadSession, error) {
	_, err := d.client.FindFile(ctx, spec.ParentID, spec.Name)
	if err == nil {
		return nil, ErrConflict
	}

	if !errors.Is(err, drive.ErrNotFound) {
		return nil, fmt.Errorf("checking for existing file %q: %w", spec.Name, err)
	}

	req := drive.ResumableRequest{
		ParentID:    spec.ParentID,
		Name:        spec.Name,
		ContentType: spec.ContentType,
		Size:        spec.Size,
		ModifiedAt:  spec.ModifiedAt,
		CreatedAt:   spec.CreatedAt,
		ChunkSize:   d.chunkSize,
		VerifyMD5:   d.verify,
	}

	session, err := d.client.StartResumableUpload(ctx, req, drive.WrapReader(ctx, content, d.limiter))
	if err != nil {
		if errors.Is(err, drive.ErrConflict) {
			return nil, ErrConflict
		}

		return nil, err
	}

	return &driveSession{session: session, size: spec.Size}, nil
}

// ListChildFolders returns the non-trashed folders directly under
// parentID in API-reported order.
func (d *DriveRemote) ListChildFolders(ctx context.Context, parentID string) ([]FolderRef, error) {
	folders, err := d.client.ListChildFolders(ctx, parentID)
	if err != nil {
		return nil, err
	}

	refs := make([]FolderRef, len(folders))
	for i := range folders {
		refs[i] = FolderRef{ID: folders[i].ID, Name: folders[i].Name}
	}

	return refs, nil
}

// SummarizeFolderContents aggregates the direct children of a folder.
func (d *DriveRemote) SummarizeFolderContents(ctx context.Context, folderID string) (FolderSummary, error) {
	summary, err := d.client.SummarizeFolder(ctx, folderID)
	if err != nil {
		return FolderSummary{}, err
	}

	return FolderSummary{
		FolderCount:     summary.Folders,
		FileCount:       summary.Files,
		DirectFileBytes: summary.Bytes,
	}, nil
}

// CreateFolder unconditionally creates a folder under parentID.
func (d *DriveRemote) CreateFolder(ctx context.Context, parentID, name string) (FolderRef, error) {
	created, err := d.client.CreateFolder(ctx, parentID, name)
	if err != nil {
		return FolderRef{}, err
	}

	return FolderRef{ID: created.ID, Name: created.Name}, nil
}

// TrashFolder moves a folder and its contents to the Drive trash.
func (d *DriveRemote) TrashFolder(ctx context.Context, folderID string) error {
	return d.client.TrashFile(ctx, folderID)
}

// driveSession adapts a Drive resumable upload to the UploadSession
// boundary, converting the confirmed byte offset into a fraction.
type driveSession struct {
	session *drive.UploadSession
	size    int64
}

// AdvanceChunk sends the next chunk and reports confirmed progress.
func (s *driveSession) AdvanceChunk(ctx context.Context) (float64, *FileInfo, error) {
	done, err := s.session.SendChunk(ctx)
	if err != nil {
		return 0, nil, err
	}

	fraction := 1.0
	if s.size > 0 {
		fraction = float64(s.session.Offset()) / float64(s.size)
	}

	if !done {
		return fraction, nil, nil
	}

	result := s.session.Result()

	return fraction, &FileInfo{ID: result.ID, Name: result.Name, Size: result.Size}, nil
}

// Abort cancels the session.
func (s *driveSession) Abort(ctx context.Context) error {
	return s.session.Abort(ctx)
}
