package replicate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

// Uploader transfers single files through resumable upload sessions,
// turning the session's fractional progress into monotonic percentage
// callbacks and classifying how each transfer ended.
type Uploader struct {
	client RemoteClient
	logger *slog.Logger
}

// NewUploader creates an uploader backed by client.
func NewUploader(client RemoteClient, logger *slog.Logger) *Uploader {
	return &Uploader{client: client, logger: logger}
}

// Upload sends the file at path to the remote folder parentID. onProgress
// receives percentages in [0, 100] along with the file's size; each call
// carries a strictly larger percentage than the one before, and a file
// that completes always ends at 100. interrupted is polled before every
// chunk; a nil func disables polling.
//
// The returned outcome is always terminal. bytes is the file's full size
// for outcomes that count toward run totals and for failures where the
// size was known; err is non-nil only for OutcomeFailed.
func (u *Uploader) Upload(
	ctx context.Context,
	path, parentID string,
	interrupted func() bool,
	onProgress func(percent int, size int64),
) (outcome Outcome, bytes int64, err error) {
	if onProgress == nil {
		onProgress = func(int, int64) {}
	}

	info, err := os.Lstat(path)
	if err != nil {
		return OutcomeFailed, 0, fmt.Errorf("uploading %s: %w", path, err)
	}

	if !info.Mode().IsRegular() {
		return OutcomeFailed, 0, fmt.Errorf("uploading %s: not a regular file: %w", path, fs.ErrNotExist)
	}

	size := info.Size()
	name := norm.NFC.String(filepath.Base(path))

	u.logger.Info("uploading file",
		slog.String("path", path),
		slog.String("size", FormatSize(size)),
		slog.String("parent_id", parentID),
	)

	src, err := os.Open(path)
	if err != nil {
		return OutcomeFailed, size, fmt.Errorf("uploading %s: %w", path, err)
	}
	defer src.Close()

	spec := UploadSpec{
		ParentID:    parentID,
		Name:        name,
		ContentType: contentType(path),
		Size:        size,
		ModifiedAt:  info.ModTime().UTC(),
		CreatedAt:   birthTime(info).UTC(),
	}

	session, err := u.client.CreateFileResumable(ctx, spec, src)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			u.logger.Warn("file already exists at destination, skipping",
				slog.String("path", path),
				slog.String("parent_id", parentID),
			)
			onProgress(100, size)

			return OutcomeConflictSkipped, size, nil
		}

		return OutcomeFailed, size, fmt.Errorf("uploading %s: %w", path, err)
	}

	lastPercent := -1

	for {
		if cancelled(ctx, interrupted) {
			u.abortSession(session, path)

			return OutcomeCancelled, size, nil
		}

		fraction, final, err := session.AdvanceChunk(ctx)
		if err != nil {
			return OutcomeFailed, size, fmt.Errorf("uploading %s: %w", path, err)
		}

		if percent := int(fraction * 100); percent > lastPercent {
			onProgress(percent, size)
			lastPercent = percent
		}

		if final != nil {
			break
		}
	}

	if lastPercent < 100 {
		onProgress(100, size)
	}

	u.logger.Info("file uploaded", slog.String("path", path))

	return OutcomeCompleted, size, nil
}

// abortSession tears down a session for a cancelled upload. Abort failures
// are logged only; the remote expires orphaned sessions on its own.
func (u *Uploader) abortSession(session UploadSession, path string) {
	if err := session.Abort(context.Background()); err != nil {
		u.logger.Warn("aborting upload session",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

// contentType infers a MIME type from the file extension, defaulting to
// a generic binary type.
func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}

	return "application/octet-stream"
}
