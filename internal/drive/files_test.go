package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeQueryString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"it's", `it\'s`},
		{"two 'quoted' words", `two \'quoted\' words`},
		{`back\slash`, `back\\slash`},
		{`tricky\'mix`, `tricky\\\'mix`},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeQueryString(tt.in), "input %q", tt.in)
	}
}

func TestFindFolder_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive/v3/files", r.URL.Path)

		query := r.URL.Query()
		assert.Equal(t,
			"'parent-1' in parents and name = 'Tax Docs' and mimeType = 'application/vnd.google-apps.folder' and trashed = false",
			query.Get("q"))
		assert.Equal(t, "1", query.Get("pageSize"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"files":[{"id":"folder-9","name":"Tax Docs","mimeType":"application/vnd.google-apps.folder"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	folder, err := client.FindFolder(context.Background(), "parent-1", "Tax Docs")
	require.NoError(t, err)

	assert.Equal(t, "folder-9", folder.ID)
	assert.Equal(t, "Tax Docs", folder.Name)
	assert.True(t, folder.IsFolder())
}

func TestFindFolder_EscapesQuotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, `name = 'Bob\'s Files'`)

		fmt.Fprint(w, `{"files":[{"id":"f1","name":"Bob's Files","mimeType":"application/vnd.google-apps.folder"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.FindFolder(context.Background(), "root", "Bob's Files")
	require.NoError(t, err)
}

func TestFindFolder_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"files":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.FindFolder(context.Background(), "root", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindFolder_FirstMatchWins(t *testing.T) {
	// Drive allows duplicate names; the query caps at one result and the
	// lookup takes whatever the server lists first.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"files":[{"id":"dup-a","name":"Photos","mimeType":"application/vnd.google-apps.folder"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	folder, err := client.FindFolder(context.Background(), "root", "Photos")
	require.NoError(t, err)
	assert.Equal(t, "dup-a", folder.ID)
}

func TestFindFile_ExcludesFolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		assert.Contains(t, q, "mimeType != 'application/vnd.google-apps.folder'")
		assert.Contains(t, q, "name = 'report.pdf'")
		assert.Contains(t, q, "trashed = false")

		fmt.Fprint(w, `{"files":[{"id":"file-3","name":"report.pdf","mimeType":"application/pdf","size":"2048"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	file, err := client.FindFile(context.Background(), "parent-1", "report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "file-3", file.ID)
	assert.Equal(t, int64(2048), file.Size)
	assert.False(t, file.IsFolder())
}

func TestCreateFolder_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/drive/v3/files", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "New Folder", payload["name"])
		assert.Equal(t, FolderMimeType, payload["mimeType"])
		assert.Equal(t, []any{"parent-1"}, payload["parents"])

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id":"created-1","name":"New Folder","mimeType":"application/vnd.google-apps.folder","parents":["parent-1"]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	folder, err := client.CreateFolder(context.Background(), "parent-1", "New Folder")
	require.NoError(t, err)

	assert.Equal(t, "created-1", folder.ID)
	assert.True(t, folder.IsFolder())
	assert.Equal(t, []string{"parent-1"}, folder.Parents)
}

func TestCreateFolder_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"denied","errors":[{"reason":"insufficientFilePermissions"}]}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.CreateFolder(context.Background(), "parent-1", "Nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), `creating folder "Nope"`)
}

func TestGetFile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drive/v3/files/abc-123", r.URL.Path)

		fmt.Fprint(w, `{"id":"abc-123","name":"root folder","mimeType":"application/vnd.google-apps.folder"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	file, err := client.GetFile(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "root folder", file.Name)
}

func TestListChildFolders_Pagination(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "name", query.Get("orderBy"))
		assert.Contains(t, query.Get("q"), "'parent-1' in parents")
		assert.Contains(t, query.Get("q"), "mimeType = 'application/vnd.google-apps.folder'")

		if calls.Add(1) == 1 {
			assert.Empty(t, query.Get("pageToken"))
			fmt.Fprint(w, `{"files":[{"id":"a","name":"alpha","mimeType":"application/vnd.google-apps.folder"}],"nextPageToken":"tok-2"}`)

			return
		}

		assert.Equal(t, "tok-2", query.Get("pageToken"))
		fmt.Fprint(w, `{"files":[{"id":"b","name":"beta","mimeType":"application/vnd.google-apps.folder"}]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	folders, err := client.ListChildFolders(context.Background(), "parent-1")
	require.NoError(t, err)

	require.Len(t, folders, 2)
	assert.Equal(t, "alpha", folders[0].Name)
	assert.Equal(t, "beta", folders[1].Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListChildren_FoldersFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "folder,name", r.URL.Query().Get("orderBy"))

		fmt.Fprint(w, `{"files":[
			{"id":"d1","name":"docs","mimeType":"application/vnd.google-apps.folder"},
			{"id":"f1","name":"a.txt","mimeType":"text/plain","size":"10"}
		]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	children, err := client.ListChildren(context.Background(), "parent-1")
	require.NoError(t, err)

	require.Len(t, children, 2)
	assert.True(t, children[0].IsFolder())
	assert.False(t, children[1].IsFolder())
}

func TestSummarizeFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"files":[
			{"id":"d1","name":"sub","mimeType":"application/vnd.google-apps.folder"},
			{"id":"d2","name":"sub2","mimeType":"application/vnd.google-apps.folder"},
			{"id":"f1","name":"a.bin","mimeType":"application/octet-stream","size":"100"},
			{"id":"f2","name":"b.bin","mimeType":"application/octet-stream","size":"50"}
		]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	summary, err := client.SummarizeFolder(context.Background(), "parent-1")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Folders)
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, int64(150), summary.Bytes)
}

func TestSummarizeFolder_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"files":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	summary, err := client.SummarizeFolder(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, FolderSummary{}, summary)
}

func TestTrashFile_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/drive/v3/files/victim-1", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"trashed":true}`, string(body))

		fmt.Fprint(w, `{"id":"victim-1","trashed":true}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.TrashFile(context.Background(), "victim-1"))
}

func TestTrashFile_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"not found"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.TrashFile(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}
