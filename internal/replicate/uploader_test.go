package replicate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// progressRecorder captures the percentage sequence one upload emits.
type progressRecorder struct {
	percents []int
	sizes    []int64
}

func (p *progressRecorder) record(percent int, size int64) {
	p.percents = append(p.percents, percent)
	p.sizes = append(p.sizes, size)
}

func TestUpload_Completes(t *testing.T) {
	remote := newFakeRemote()
	remote.chunkFractions = []float64{0.25, 0.5, 0.75}
	uploader := NewUploader(remote, discardLogger())

	path := writeFile(t, t.TempDir(), "a.txt", 100)

	var rec progressRecorder
	outcome, bytes, err := uploader.Upload(context.Background(), path, "root", nil, rec.record)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, int64(100), bytes)
	assert.Equal(t, []int{25, 50, 75, 100}, rec.percents)
	assert.Equal(t, int64(100), remote.files["root/a.txt"])
}

func TestUpload_ProgressIsStrictlyIncreasing(t *testing.T) {
	remote := newFakeRemote()
	// Repeated and regressing fractions must be de-duplicated.
	remote.chunkFractions = []float64{0.10, 0.10, 0.30, 0.30, 0.90}
	uploader := NewUploader(remote, discardLogger())

	path := writeFile(t, t.TempDir(), "a.txt", 1000)

	var rec progressRecorder
	outcome, _, err := uploader.Upload(context.Background(), path, "root", nil, rec.record)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	assert.Equal(t, []int{10, 30, 90, 100}, rec.percents)

	for i := 1; i < len(rec.percents); i++ {
		assert.Greater(t, rec.percents[i], rec.percents[i-1])
	}

	assert.Equal(t, 100, rec.percents[len(rec.percents)-1])
}

func TestUpload_FinalHundredIsEmittedOnce(t *testing.T) {
	remote := newFakeRemote()
	// The completing chunk already reports 1.0; no extra 100 after it.
	uploader := NewUploader(remote, discardLogger())

	path := writeFile(t, t.TempDir(), "a.txt", 10)

	var rec progressRecorder
	outcome, _, err := uploader.Upload(context.Background(), path, "root", nil, rec.record)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, outcome)

	assert.Equal(t, []int{100}, rec.percents)
}

func TestUpload_EmptyFile(t *testing.T) {
	remote := newFakeRemote()
	uploader := NewUploader(remote, discardLogger())

	path := writeFile(t, t.TempDir(), "empty.txt", 0)

	var rec progressRecorder
	outcome, bytes, err := uploader.Upload(context.Background(), path, "root", nil, rec.record)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, int64(0), bytes)
	assert.Equal(t, []int{100}, rec.percents)
}

func TestUpload_ConflictSkips(t *testing.T) {
	remote := newFakeRemote()
	remote.files["root/a.txt"] = 42
	uploader := NewUploader(remote, discardLogger())

	path := writeFile(t, t.TempDir(), "a.txt", 100)

	var rec progressRecorder
	outcome, bytes, err := uploader.Upload(context.Background(), path, "root", nil, rec.record)
	require.NoError(t, err)

	assert.Equal(t, OutcomeConflictSkipped, outcome)
	assert.Equal(t, int64(100), bytes, "conflict-skip reports the local size")
	assert.Equal(t, []int{100}, rec.percents)
	assert.Empty(t, remote.uploadOrder, "no session may be opened for a conflict")
	assert.Equal(t, int64(42), remote.files["root/a.txt"], "existing remote file untouched")
}

func TestUpload_MissingFile(t *testing.T) {
	remote := newFakeRemote()
	uploader := NewUploader(remote, discardLogger())

	outcome, bytes, err := uploader.Upload(
		context.Background(), filepath.Join(t.TempDir(), "gone.txt"), "root", nil, nil)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, int64(0), bytes)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestUpload_NotARegularFile(t *testing.T) {
	remote := newFakeRemote()
	uploader := NewUploader(remote, discardLogger())

	dir := t.TempDir()
	target := writeFile(t, dir, "real.txt", 5)
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink(target, link))

	outcome, _, err := uploader.Upload(context.Background(), link, "root", nil, nil)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestUpload_ChunkFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.failUploads["a.txt"] = true
	uploader := NewUploader(remote, discardLogger())

	path := writeFile(t, t.TempDir(), "a.txt", 100)

	outcome, bytes, err := uploader.Upload(context.Background(), path, "root", nil, nil)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, int64(100), bytes)
	assert.Error(t, err)
	assert.NotContains(t, remote.files, "root/a.txt")
}

func TestUpload_CancelledBeforeFirstChunk(t *testing.T) {
	remote := newFakeRemote()
	uploader := NewUploader(remote, discardLogger())

	path := writeFile(t, t.TempDir(), "a.txt", 100)

	outcome, _, err := uploader.Upload(
		context.Background(), path, "root", func() bool { return true }, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, []string{"a.txt"}, remote.aborted, "session must be aborted")
	assert.NotContains(t, remote.files, "root/a.txt")
}

func TestUpload_CancelledMidTransfer(t *testing.T) {
	remote := newFakeRemote()
	remote.chunkFractions = []float64{0.5}

	calls := 0
	interrupted := func() bool {
		calls++
		return calls > 1
	}

	uploader := NewUploader(remote, discardLogger())
	path := writeFile(t, t.TempDir(), "a.txt", 100)

	var rec progressRecorder
	outcome, _, err := uploader.Upload(context.Background(), path, "root", interrupted, rec.record)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Equal(t, []int{50}, rec.percents, "no progress after the cancellation point")
	assert.Equal(t, []string{"a.txt"}, remote.aborted)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/octet-stream", contentType("/tmp/blob"))
	assert.Equal(t, "application/octet-stream", contentType("/tmp/file.unknownext"))
	assert.Contains(t, contentType("/tmp/page.html"), "text/html")
}
