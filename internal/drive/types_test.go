package drive

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToFile_ParsesFields(t *testing.T) {
	raw := fileResponse{
		ID:           "id-1",
		Name:         "report.pdf",
		MimeType:     "application/pdf",
		Size:         "123456",
		MD5Checksum:  "d41d8cd98f00b204e9800998ecf8427e",
		CreatedTime:  "2023-05-01T10:00:00Z",
		ModifiedTime: "2024-06-02T11:30:00Z",
		Parents:      []string{"parent-1"},
	}

	file := raw.toFile(slog.Default())

	assert.Equal(t, "id-1", file.ID)
	assert.Equal(t, int64(123456), file.Size)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", file.MD5Checksum)
	assert.Equal(t, 2023, file.CreatedAt.Year())
	assert.Equal(t, time.June, file.ModifiedAt.Month())
	assert.False(t, file.IsFolder())
}

func TestToFile_FolderHasNoSize(t *testing.T) {
	raw := fileResponse{
		ID:       "folder-1",
		Name:     "docs",
		MimeType: FolderMimeType,
	}

	file := raw.toFile(slog.Default())

	assert.True(t, file.IsFolder())
	assert.Zero(t, file.Size)
	assert.True(t, file.CreatedAt.IsZero())
}

func TestToFile_BadSizeFallsBackToZero(t *testing.T) {
	tests := []string{"not-a-number", "-5", "1.5"}

	for _, size := range tests {
		raw := fileResponse{ID: "x", Size: size}
		file := raw.toFile(slog.Default())
		assert.Zero(t, file.Size, "size %q", size)
	}
}

func TestParseTimestamp_Valid(t *testing.T) {
	got := parseTimestamp("2024-03-15T08:45:30Z", "id", slog.Default())

	assert.Equal(t, time.Date(2024, 3, 15, 8, 45, 30, 0, time.UTC), got)
}

func TestParseTimestamp_Empty(t *testing.T) {
	got := parseTimestamp("", "id", slog.Default())

	assert.True(t, got.IsZero())
}

func TestParseTimestamp_GarbageFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	got := parseTimestamp("last tuesday", "id", slog.Default())

	assert.False(t, got.IsZero())
	assert.False(t, got.Before(before.Add(-time.Minute)))
}

func TestParseTimestamp_RejectsAbsurdYears(t *testing.T) {
	tests := []string{
		"1601-01-01T00:00:00Z",
		"9999-12-31T23:59:59Z",
	}

	currentYear := time.Now().Year()

	for _, value := range tests {
		got := parseTimestamp(value, "id", slog.Default())
		assert.Equal(t, currentYear, got.Year(), "value %q", value)
	}
}
