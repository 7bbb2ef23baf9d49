package drive

import (
	"log/slog"
	"strconv"
	"time"
)

// FolderMimeType identifies a Drive folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// fileResponse mirrors the JSON the API returns for a file resource.
// Size comes back as a decimal string, not a number.
type fileResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	Size         string   `json:"size"`
	MD5Checksum  string   `json:"md5Checksum"`
	CreatedTime  string   `json:"createdTime"`
	ModifiedTime string   `json:"modifiedTime"`
	Trashed      bool     `json:"trashed"`
	Parents      []string `json:"parents"`
}

// fileListResponse mirrors a files.list page.
type fileListResponse struct {
	Files         []fileResponse `json:"files"`
	NextPageToken string         `json:"nextPageToken"`
}

// File is a file or folder on Drive.
type File struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	MD5Checksum string
	CreatedAt   time.Time
	ModifiedAt  time.Time
	Trashed     bool
	Parents     []string
}

// IsFolder reports whether the file is a Drive folder.
func (f *File) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// toFile converts an API file resource into a File, tolerating the
// malformed sizes and timestamps that occasionally show up in responses.
func (r *fileResponse) toFile(logger *slog.Logger) File {
	f := File{
		ID:          r.ID,
		Name:        r.Name,
		MimeType:    r.MimeType,
		MD5Checksum: r.MD5Checksum,
		Trashed:     r.Trashed,
		Parents:     r.Parents,
	}

	if r.Size != "" {
		size, err := strconv.ParseInt(r.Size, 10, 64)
		if err != nil || size < 0 {
			logger.Warn("unparseable file size in API response", "id", r.ID, "size", r.Size)
		} else {
			f.Size = size
		}
	}

	f.CreatedAt = parseTimestamp(r.CreatedTime, r.ID, logger)
	f.ModifiedAt = parseTimestamp(r.ModifiedTime, r.ID, logger)

	return f
}

// parseTimestamp parses an RFC 3339 timestamp from the API, rejecting
// values outside a sane year range. Bad values are logged and replaced
// with the current time so callers never see a zero time from a live
// response.
func parseTimestamp(value, id string, logger *slog.Logger) time.Time {
	if value == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil || t.Year() < 1970 || t.Year() > 2100 {
		logger.Warn("unparseable timestamp in API response", "id", id, "value", value)
		return time.Now().UTC()
	}

	return t
}

// aboutResponse mirrors the /about resource.
type aboutResponse struct {
	StorageQuota struct {
		Limit             string `json:"limit"`
		Usage             string `json:"usage"`
		UsageInDrive      string `json:"usageInDrive"`
		UsageInDriveTrash string `json:"usageInDriveTrash"`
	} `json:"storageQuota"`
	User struct {
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"user"`
}

// About describes the authenticated account and its storage quota.
// Limit is zero for accounts with unlimited storage.
type About struct {
	UserName  string
	UserEmail string
	Limit     int64
	Usage     int64
	InDrive   int64
	InTrash   int64
}
