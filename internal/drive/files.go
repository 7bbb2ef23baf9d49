package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// escapeQueryString escapes a literal value for use inside a Drive
// search query. Backslashes must be escaped before quotes.
func escapeQueryString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// FindFolder looks up a non-trashed folder named name directly under
// parentID. When several folders share the name, the first one the API
// returns wins. Returns ErrNotFound if no match exists.
func (c *Client) FindFolder(ctx context.Context, parentID, name string) (File, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType = '%s' and trashed = false",
		escapeQueryString(parentID), escapeQueryString(name), FolderMimeType)

	return c.findOne(ctx, query)
}

// FindFile looks up a non-trashed regular file named name directly under
// parentID. Returns ErrNotFound if no match exists.
func (c *Client) FindFile(ctx context.Context, parentID, name string) (File, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType != '%s' and trashed = false",
		escapeQueryString(parentID), escapeQueryString(name), FolderMimeType)

	return c.findOne(ctx, query)
}

const fileFields = "id,name,mimeType,size,md5Checksum,createdTime,modifiedTime,trashed,parents"

func (c *Client) findOne(ctx context.Context, query string) (File, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", "1")
	params.Set("fields", "files("+fileFields+")")

	resp, err := c.Do(ctx, http.MethodGet, "/files?"+params.Encode(), nil)
	if err != nil {
		return File{}, err
	}

	var list fileListResponse
	if err := decodeJSON(resp, &list); err != nil {
		return File{}, err
	}

	if len(list.Files) == 0 {
		return File{}, ErrNotFound
	}

	return list.Files[0].toFile(c.logger), nil
}

// CreateFolder creates a folder named name under parentID and returns
// the created folder.
func (c *Client) CreateFolder(ctx context.Context, parentID, name string) (File, error) {
	payload := map[string]any{
		"name":     name,
		"mimeType": FolderMimeType,
		"parents":  []string{parentID},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return File{}, fmt.Errorf("encoding folder metadata: %w", err)
	}

	params := url.Values{}
	params.Set("fields", fileFields)

	resp, err := c.Do(ctx, http.MethodPost, "/files?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return File{}, fmt.Errorf("creating folder %q: %w", name, err)
	}

	var created fileResponse
	if err := decodeJSON(resp, &created); err != nil {
		return File{}, err
	}

	return created.toFile(c.logger), nil
}

// GetFile fetches a single file or folder by ID.
func (c *Client) GetFile(ctx context.Context, id string) (File, error) {
	params := url.Values{}
	params.Set("fields", fileFields)

	resp, err := c.Do(ctx, http.MethodGet, "/files/"+url.PathEscape(id)+"?"+params.Encode(), nil)
	if err != nil {
		return File{}, err
	}

	var file fileResponse
	if err := decodeJSON(resp, &file); err != nil {
		return File{}, err
	}

	return file.toFile(c.logger), nil
}

// ListChildFolders returns all non-trashed folders directly under
// parentID, sorted by name, following pagination to the end.
func (c *Client) ListChildFolders(ctx context.Context, parentID string) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false",
		escapeQueryString(parentID), FolderMimeType)

	return c.listAll(ctx, query, "name")
}

// ListChildren returns all non-trashed files and folders directly under
// parentID, folders first, each group sorted by name.
func (c *Client) ListChildren(ctx context.Context, parentID string) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQueryString(parentID))

	return c.listAll(ctx, query, "folder,name")
}

func (c *Client) listAll(ctx context.Context, query, orderBy string) ([]File, error) {
	var files []File

	pageToken := ""
	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("pageSize", "1000")
		params.Set("orderBy", orderBy)
		params.Set("fields", "nextPageToken,files("+fileFields+")")

		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		resp, err := c.Do(ctx, http.MethodGet, "/files?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var list fileListResponse
		if err := decodeJSON(resp, &list); err != nil {
			return nil, err
		}

		for i := range list.Files {
			files = append(files, list.Files[i].toFile(c.logger))
		}

		if list.NextPageToken == "" {
			return files, nil
		}

		pageToken = list.NextPageToken
	}
}

// FolderSummary aggregates the direct children of a folder.
type FolderSummary struct {
	Folders int
	Files   int
	Bytes   int64
}

// SummarizeFolder counts the direct children of parentID and sums the
// sizes of the regular files among them.
func (c *Client) SummarizeFolder(ctx context.Context, parentID string) (FolderSummary, error) {
	children, err := c.ListChildren(ctx, parentID)
	if err != nil {
		return FolderSummary{}, err
	}

	var summary FolderSummary
	for i := range children {
		if children[i].IsFolder() {
			summary.Folders++
		} else {
			summary.Files++
			summary.Bytes += children[i].Size
		}
	}

	return summary, nil
}

// TrashFile moves a file or folder to the trash. Trashing a folder
// trashes its contents with it.
func (c *Client) TrashFile(ctx context.Context, id string) error {
	body := bytes.NewReader([]byte(`{"trashed":true}`))

	resp, err := c.Do(ctx, http.MethodPatch, "/files/"+url.PathEscape(id), body)
	if err != nil {
		return fmt.Errorf("trashing %s: %w", id, err)
	}

	resp.Body.Close()

	return nil
}
