package tokenfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).UTC(),
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	meta := map[string]string{"email": "user@example.com"}

	require.NoError(t, Save(path, testToken(), meta))

	tok, gotMeta, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "access-123", tok.AccessToken)
	assert.Equal(t, "refresh-456", tok.RefreshToken)
	assert.Equal(t, meta, gotMeta)
}

func TestLoad_MissingFile(t *testing.T) {
	tok, meta, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, tok)
	assert.Nil(t, meta)
}

func TestLoad_MissingTokenField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"meta":{"email":"x"}}`), 0o600))

	_, _, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token field")
}

func TestLoad_CorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, _, err := Load(path)
	assert.Error(t, err)
}

func TestSave_CreatesDirAndRestrictsPerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "token.json")

	require.NoError(t, Save(path, testToken(), nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSave_OverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")

	require.NoError(t, Save(path, testToken(), nil))

	second := testToken()
	second.AccessToken = "access-v2"
	require.NoError(t, Save(path, second, nil))

	tok, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "access-v2", tok.AccessToken)

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, Save(path, testToken(), map[string]string{"email": "a@b.c"}))

	meta, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", meta["email"])

	missing, err := ReadMeta(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
