package drive

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// ChunkAlignment is the unit Drive requires chunk sizes to be a
	// multiple of. Every chunk except the last must be aligned.
	ChunkAlignment = 256 * 1024

	// DefaultChunkSize is used when a caller does not pick one.
	DefaultChunkSize = 8 * 1024 * 1024
)

// ResumableRequest describes a file to upload via a resumable session.
type ResumableRequest struct {
	ParentID    string
	Name        string
	ContentType string
	Size        int64
	ModifiedAt  time.Time
	CreatedAt   time.Time
	ChunkSize   int64
	VerifyMD5   bool
}

// UploadSession is an in-progress resumable upload. Chunks are sent one
// at a time with SendChunk until it reports done.
type UploadSession struct {
	client    *Client
	uri       string
	src       io.Reader
	size      int64
	offset    int64
	chunkSize int64
	hash      hash.Hash

	// buf holds bytes read from src but not yet confirmed by the
	// server, so a partially accepted chunk can be resent without
	// seeking the source.
	buf    []byte
	bufLen int

	done   bool
	result File
}

// StartResumableUpload opens a resumable upload session for a new file
// under req.ParentID. Content is read from src as chunks are sent.
func (c *Client) StartResumableUpload(ctx context.Context, req ResumableRequest, src io.Reader) (*UploadSession, error) {
	if req.Size < 0 {
		return nil, fmt.Errorf("negative upload size %d", req.Size)
	}

	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	if chunkSize <= 0 || chunkSize%ChunkAlignment != 0 {
		return nil, fmt.Errorf("chunk size %d is not a positive multiple of %d", chunkSize, ChunkAlignment)
	}

	metadata := map[string]any{
		"name":    req.Name,
		"parents": []string{req.ParentID},
	}

	if !req.ModifiedAt.IsZero() {
		metadata["modifiedTime"] = req.ModifiedAt.UTC().Format(time.RFC3339)
	}

	if !req.CreatedAt.IsZero() {
		metadata["createdTime"] = req.CreatedAt.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding file metadata: %w", err)
	}

	params := url.Values{}
	params.Set("uploadType", "resumable")
	params.Set("fields", fileFields)

	headers := map[string]string{
		"X-Upload-Content-Type":   req.ContentType,
		"X-Upload-Content-Length": strconv.FormatInt(req.Size, 10),
	}

	resp, err := c.DoUpload(ctx, http.MethodPost, "/files?"+params.Encode(), bytes.NewReader(body), headers)
	if err != nil {
		return nil, fmt.Errorf("starting upload session for %q: %w", req.Name, err)
	}

	resp.Body.Close()

	uri := resp.Header.Get("Location")
	if uri == "" {
		return nil, fmt.Errorf("upload session response for %q is missing Location header", req.Name)
	}

	session := &UploadSession{
		client:    c,
		uri:       uri,
		src:       src,
		size:      req.Size,
		chunkSize: chunkSize,
	}

	if req.VerifyMD5 {
		session.hash = md5.New()
	}

	return session, nil
}

// Offset returns the number of bytes the server has confirmed so far.
func (s *UploadSession) Offset() int64 {
	return s.offset
}

// Result returns the uploaded file. Valid only after SendChunk has
// reported done.
func (s *UploadSession) Result() File {
	return s.result
}

// SendChunk uploads the next chunk and returns true once the server has
// accepted the final byte. The session URI is pre-authorized, so chunk
// requests carry no Authorization header and are not retried here; a
// failed chunk fails the upload.
func (s *UploadSession) SendChunk(ctx context.Context) (bool, error) {
	if s.done {
		return true, fmt.Errorf("upload session already complete")
	}

	if s.size == 0 {
		return s.sendEmpty(ctx)
	}

	want := s.chunkSize
	if remaining := s.size - s.offset; remaining < want {
		want = remaining
	}

	if s.buf == nil {
		s.buf = make([]byte, s.chunkSize)
	}

	if int64(s.bufLen) < want {
		n, err := io.ReadFull(s.src, s.buf[s.bufLen:want])
		s.bufLen += n

		if err != nil {
			return false, fmt.Errorf("reading source at offset %d: %w", s.offset+int64(s.bufLen)-int64(n), err)
		}
	}

	headers := map[string]string{
		"Content-Range": fmt.Sprintf("bytes %d-%d/%d", s.offset, s.offset+want-1, s.size),
	}

	resp, err := s.client.uploadRaw(ctx, http.MethodPut, s.uri, bytes.NewReader(s.buf[:want]), headers)
	if err != nil {
		return false, fmt.Errorf("sending chunk at offset %d: %w", s.offset, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return true, s.finish(resp, want)

	case 308: // Resume Incomplete
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		confirmed := s.offset
		if end, ok := parseRangeEnd(resp.Header.Get("Range")); ok {
			confirmed = end + 1
		}

		accepted := confirmed - s.offset
		if accepted < 0 || accepted > want {
			return false, fmt.Errorf("server confirmed offset %d outside sent range %d-%d", confirmed, s.offset, s.offset+want-1)
		}

		if s.hash != nil {
			s.hash.Write(s.buf[:accepted])
		}

		// Keep the unconfirmed tail for the next send.
		copy(s.buf, s.buf[accepted:want])
		s.bufLen = int(want - accepted)
		s.offset = confirmed

		return false, nil

	case http.StatusNotFound:
		drainError(resp)
		return false, ErrSessionExpired

	default:
		driveErr := drainError(resp)
		return false, fmt.Errorf("uploading chunk at offset %d: %w", s.offset, driveErr)
	}
}

// sendEmpty completes a zero-byte upload with a single request.
func (s *UploadSession) sendEmpty(ctx context.Context) (bool, error) {
	headers := map[string]string{"Content-Range": "bytes */0"}

	resp, err := s.client.uploadRaw(ctx, http.MethodPut, s.uri, nil, headers)
	if err != nil {
		return false, fmt.Errorf("finalizing empty upload: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return true, s.finish(resp, 0)
	case http.StatusNotFound:
		drainError(resp)
		return false, ErrSessionExpired
	default:
		return false, drainError(resp)
	}
}

// finish decodes the completed file resource and verifies the checksum
// when verification is on.
func (s *UploadSession) finish(resp *http.Response, sent int64) error {
	var raw fileResponse
	if err := decodeJSON(resp, &raw); err != nil {
		return err
	}

	s.result = raw.toFile(s.client.logger)
	s.offset = s.size
	s.done = true

	if s.hash != nil {
		s.hash.Write(s.buf[:sent])

		local := fmt.Sprintf("%x", s.hash.Sum(nil))
		if s.result.MD5Checksum != "" && !strings.EqualFold(local, s.result.MD5Checksum) {
			return fmt.Errorf("uploaded %q: local md5 %s, remote md5 %s: %w",
				s.result.Name, local, s.result.MD5Checksum, ErrChecksumMismatch)
		}
	}

	return nil
}

// Abort cancels the upload session. Drive answers 499 for a canceled
// session; 404 means it already expired.
func (s *UploadSession) Abort(ctx context.Context) error {
	resp, err := s.client.uploadRaw(ctx, http.MethodDelete, s.uri, nil, nil)
	if err != nil {
		return fmt.Errorf("canceling upload session: %w", err)
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == 499 || resp.StatusCode == http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("canceling upload session: HTTP %d", resp.StatusCode)
	}
}

// uploadRaw sends a request to a pre-authorized session URI. No
// Authorization header, no retry.
func (c *Client) uploadRaw(ctx context.Context, method, uri string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

// parseRangeEnd extracts N from a "bytes=0-N" Range header.
func parseRangeEnd(header string) (int64, bool) {
	value, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, false
	}

	_, endStr, ok := strings.Cut(value, "-")
	if !ok {
		return 0, false
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < 0 {
		return 0, false
	}

	return end, true
}
