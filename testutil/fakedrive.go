// Package testutil provides an in-process fake of the Google Drive v3
// API for hermetic end-to-end tests: files.list with the query subset
// the client emits, metadata create, get, trash, about, and the full
// resumable upload protocol.
package testutil

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FolderMimeType identifies a Drive folder.
const FolderMimeType = "application/vnd.google-apps.folder"

// RootID is the alias clients use for the My Drive root.
const RootID = "root"

// FakeFile is one stored file or folder.
type FakeFile struct {
	ID           string
	Name         string
	MimeType     string
	Parents      []string
	Content      []byte
	Trashed      bool
	CreatedTime  string
	ModifiedTime string
}

// IsFolder reports whether the entry is a folder.
func (f *FakeFile) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// MD5 returns the hex MD5 of the stored content.
func (f *FakeFile) MD5() string {
	return fmt.Sprintf("%x", md5.Sum(f.Content))
}

// uploadSession is one in-flight resumable upload.
type uploadSession struct {
	name         string
	parentID     string
	size         int64
	createdTime  string
	modifiedTime string
	received     []byte
	aborted      bool
}

// FakeDrive stores files in memory and serves the Drive v3 endpoints.
type FakeDrive struct {
	srv *httptest.Server

	mu       sync.Mutex
	files    map[string]*FakeFile
	sessions map[string]*uploadSession
	nextID   int

	// FailChunks makes the next N chunk PUTs answer 500, for testing
	// upload failure paths.
	FailChunks int

	// AbortedSessions counts DELETEd upload sessions.
	AbortedSessions int
}

// NewFakeDrive starts the fake server. Callers must Close it.
func NewFakeDrive() *FakeDrive {
	fd := &FakeDrive{
		files:    make(map[string]*FakeFile),
		sessions: make(map[string]*uploadSession),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /drive/v3/files", fd.handleList)
	mux.HandleFunc("POST /drive/v3/files", fd.handleCreate)
	mux.HandleFunc("GET /drive/v3/files/{id}", fd.handleGet)
	mux.HandleFunc("PATCH /drive/v3/files/{id}", fd.handlePatch)
	mux.HandleFunc("GET /drive/v3/about", fd.handleAbout)
	mux.HandleFunc("POST /upload/drive/v3/files", fd.handleStartUpload)
	mux.HandleFunc("PUT /upload-session/{id}", fd.handleChunk)
	mux.HandleFunc("DELETE /upload-session/{id}", fd.handleAbortUpload)

	fd.srv = httptest.NewServer(mux)

	return fd
}

// URL returns the server origin, suitable for drive.NewClient.
func (fd *FakeDrive) URL() string {
	return fd.srv.URL
}

// Close shuts the server down.
func (fd *FakeDrive) Close() {
	fd.srv.Close()
}

// AddFolder creates a folder directly in the store and returns its id.
func (fd *FakeDrive) AddFolder(parentID, name string) string {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	f := fd.newFileLocked(name, FolderMimeType, parentID, nil)

	return f.ID
}

// AddFile creates a file directly in the store and returns its id.
func (fd *FakeDrive) AddFile(parentID, name string, content []byte) string {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	f := fd.newFileLocked(name, "application/octet-stream", parentID, content)

	return f.ID
}

// Lookup returns the non-trashed child of parentID with the given name,
// or nil.
func (fd *FakeDrive) Lookup(parentID, name string) *FakeFile {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	for _, f := range fd.files {
		if !f.Trashed && f.Name == name && hasParent(f, parentID) {
			copied := *f
			return &copied
		}
	}

	return nil
}

// Children returns the non-trashed children of parentID.
func (fd *FakeDrive) Children(parentID string) []FakeFile {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	var out []FakeFile

	for _, f := range fd.files {
		if !f.Trashed && hasParent(f, parentID) {
			out = append(out, *f)
		}
	}

	return out
}

// FileCount returns the number of non-trashed non-folder files stored.
func (fd *FakeDrive) FileCount() int {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	count := 0

	for _, f := range fd.files {
		if !f.Trashed && !f.IsFolder() {
			count++
		}
	}

	return count
}

func (fd *FakeDrive) newFileLocked(name, mimeType, parentID string, content []byte) *FakeFile {
	fd.nextID++

	now := time.Now().UTC().Format(time.RFC3339)
	f := &FakeFile{
		ID:           fmt.Sprintf("fake-%04d", fd.nextID),
		Name:         name,
		MimeType:     mimeType,
		Parents:      []string{parentID},
		Content:      content,
		CreatedTime:  now,
		ModifiedTime: now,
	}

	fd.files[f.ID] = f

	return f
}

func hasParent(f *FakeFile, parentID string) bool {
	for _, p := range f.Parents {
		if p == parentID {
			return true
		}
	}

	return false
}

// Query predicate extraction. The client only ever emits conjunctions
// of these forms.
var (
	reParent  = regexp.MustCompile(`'((?:[^'\\]|\\.)*)' in parents`)
	reName    = regexp.MustCompile(`name = '((?:[^'\\]|\\.)*)'`)
	reMimeEq  = regexp.MustCompile(`mimeType = '([^']*)'`)
	reMimeNeq = regexp.MustCompile(`mimeType != '([^']*)'`)
	reUntrash = regexp.MustCompile(`trashed = false`)
)

// unescapeQuery reverses the client's \' and \\ escaping.
func unescapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\'`, `'`)

	return strings.ReplaceAll(s, `\\`, `\`)
}

func (fd *FakeDrive) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	var (
		parentID, name     string
		mimeEq, mimeNeq    string
		excludeTrashedOnly = reUntrash.MatchString(query)
	)

	if m := reParent.FindStringSubmatch(query); m != nil {
		parentID = unescapeQuery(m[1])
	}

	if m := reName.FindStringSubmatch(query); m != nil {
		name = unescapeQuery(m[1])
	}

	if m := reMimeEq.FindStringSubmatch(query); m != nil {
		mimeEq = m[1]
	}

	if m := reMimeNeq.FindStringSubmatch(query); m != nil {
		mimeNeq = m[1]
	}

	fd.mu.Lock()

	var matched []*FakeFile

	for _, f := range fd.files {
		switch {
		case excludeTrashedOnly && f.Trashed:
		case parentID != "" && !hasParent(f, parentID):
		case name != "" && f.Name != name:
		case mimeEq != "" && f.MimeType != mimeEq:
		case mimeNeq != "" && f.MimeType == mimeNeq:
		default:
			matched = append(matched, f)
		}
	}

	resources := make([]map[string]any, 0, len(matched))
	for _, f := range matched {
		resources = append(resources, fd.resourceLocked(f))
	}

	fd.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"files": resources})
}

func (fd *FakeDrive) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string   `json:"name"`
		MimeType string   `json:"mimeType"`
		Parents  []string `json:"parents"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid metadata")
		return
	}

	parent := RootID
	if len(payload.Parents) > 0 {
		parent = payload.Parents[0]
	}

	fd.mu.Lock()
	f := fd.newFileLocked(payload.Name, payload.MimeType, parent, nil)
	resource := fd.resourceLocked(f)
	fd.mu.Unlock()

	writeJSON(w, http.StatusOK, resource)
}

func (fd *FakeDrive) handleGet(w http.ResponseWriter, r *http.Request) {
	fd.mu.Lock()
	f, ok := fd.files[r.PathValue("id")]

	if !ok && r.PathValue("id") == RootID {
		fd.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"id": RootID, "name": "My Drive", "mimeType": FolderMimeType,
		})

		return
	}

	if !ok {
		fd.mu.Unlock()
		writeAPIError(w, http.StatusNotFound, "file not found")

		return
	}

	resource := fd.resourceLocked(f)
	fd.mu.Unlock()

	writeJSON(w, http.StatusOK, resource)
}

func (fd *FakeDrive) handlePatch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Trashed *bool `json:"trashed"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid patch")
		return
	}

	fd.mu.Lock()
	f, ok := fd.files[r.PathValue("id")]
	if !ok {
		fd.mu.Unlock()
		writeAPIError(w, http.StatusNotFound, "file not found")

		return
	}

	if payload.Trashed != nil {
		f.Trashed = *payload.Trashed
	}

	resource := fd.resourceLocked(f)
	fd.mu.Unlock()

	writeJSON(w, http.StatusOK, resource)
}

func (fd *FakeDrive) handleAbout(w http.ResponseWriter, _ *http.Request) {
	fd.mu.Lock()

	var usage int64
	for _, f := range fd.files {
		usage += int64(len(f.Content))
	}

	fd.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"storageQuota": map[string]string{
			"limit":             "16106127360",
			"usage":             strconv.FormatInt(usage, 10),
			"usageInDrive":      strconv.FormatInt(usage, 10),
			"usageInDriveTrash": "0",
		},
		"user": map[string]string{
			"displayName":  "Fake User",
			"emailAddress": "fake@example.com",
		},
	})
}

func (fd *FakeDrive) handleStartUpload(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("uploadType") != "resumable" {
		writeAPIError(w, http.StatusBadRequest, "only resumable uploads are supported")
		return
	}

	var payload struct {
		Name         string   `json:"name"`
		Parents      []string `json:"parents"`
		CreatedTime  string   `json:"createdTime"`
		ModifiedTime string   `json:"modifiedTime"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid metadata")
		return
	}

	size, err := strconv.ParseInt(r.Header.Get("X-Upload-Content-Length"), 10, 64)
	if err != nil || size < 0 {
		writeAPIError(w, http.StatusBadRequest, "missing X-Upload-Content-Length")
		return
	}

	parent := RootID
	if len(payload.Parents) > 0 {
		parent = payload.Parents[0]
	}

	fd.mu.Lock()
	fd.nextID++
	sessionID := fmt.Sprintf("session-%04d", fd.nextID)
	fd.sessions[sessionID] = &uploadSession{
		name:         payload.Name,
		parentID:     parent,
		size:         size,
		createdTime:  payload.CreatedTime,
		modifiedTime: payload.ModifiedTime,
	}
	fd.mu.Unlock()

	w.Header().Set("Location", fd.srv.URL+"/upload-session/"+sessionID)
	w.WriteHeader(http.StatusOK)
}

func (fd *FakeDrive) handleChunk(w http.ResponseWriter, r *http.Request) {
	fd.mu.Lock()

	if fd.FailChunks > 0 {
		fd.FailChunks--
		fd.mu.Unlock()
		writeAPIError(w, http.StatusInternalServerError, "injected chunk failure")

		return
	}

	session, ok := fd.sessions[r.PathValue("id")]
	if !ok || session.aborted {
		fd.mu.Unlock()
		writeAPIError(w, http.StatusNotFound, "unknown upload session")

		return
	}
	fd.mu.Unlock()

	contentRange := r.Header.Get("Content-Range")

	// Zero-byte finalize.
	if contentRange == "bytes */0" && session.size == 0 {
		fd.finalizeUpload(w, r.PathValue("id"), session)
		return
	}

	start, end, total, err := parseContentRange(contentRange)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	if total != session.size || start != int64(len(session.received)) {
		writeAPIError(w, http.StatusBadRequest, "chunk offset mismatch")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || int64(len(body)) != end-start+1 {
		writeAPIError(w, http.StatusBadRequest, "chunk body does not match Content-Range")
		return
	}

	session.received = append(session.received, body...)

	if int64(len(session.received)) == session.size {
		fd.finalizeUpload(w, r.PathValue("id"), session)
		return
	}

	w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(session.received)-1))
	w.WriteHeader(308)
}

func (fd *FakeDrive) finalizeUpload(w http.ResponseWriter, sessionID string, session *uploadSession) {
	fd.mu.Lock()

	f := fd.newFileLocked(session.name, "application/octet-stream", session.parentID, session.received)
	if session.createdTime != "" {
		f.CreatedTime = session.createdTime
	}

	if session.modifiedTime != "" {
		f.ModifiedTime = session.modifiedTime
	}

	delete(fd.sessions, sessionID)
	resource := fd.resourceLocked(f)
	fd.mu.Unlock()

	writeJSON(w, http.StatusOK, resource)
}

func (fd *FakeDrive) handleAbortUpload(w http.ResponseWriter, r *http.Request) {
	fd.mu.Lock()

	if session, ok := fd.sessions[r.PathValue("id")]; ok {
		session.aborted = true
		fd.AbortedSessions++
	}

	fd.mu.Unlock()

	w.WriteHeader(499)
}

// resourceLocked renders a file as the API's JSON resource shape. Sizes
// are decimal strings, as in the real API.
func (fd *FakeDrive) resourceLocked(f *FakeFile) map[string]any {
	resource := map[string]any{
		"id":       f.ID,
		"name":     f.Name,
		"mimeType": f.MimeType,
		"trashed":  f.Trashed,
		"parents":  f.Parents,
	}

	if f.CreatedTime != "" {
		resource["createdTime"] = f.CreatedTime
	}

	if f.ModifiedTime != "" {
		resource["modifiedTime"] = f.ModifiedTime
	}

	if !f.IsFolder() {
		resource["size"] = strconv.FormatInt(int64(len(f.Content)), 10)
		resource["md5Checksum"] = f.MD5()
	}

	return resource
}

// parseContentRange parses "bytes start-end/total".
func parseContentRange(header string) (start, end, total int64, err error) {
	value, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}

	rangePart, totalStr, ok := strings.Cut(value, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}

	startStr, endStr, ok := strings.Cut(rangePart, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}

	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}

	end, err = strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}

	total, err = strconv.ParseInt(totalStr, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed Content-Range %q", header)
	}

	return start, end, total, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAPIError renders the Drive API error envelope.
func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
		},
	})
}
