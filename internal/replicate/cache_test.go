package replicate

import (
	"context"
	"testing"

	"golang.org/x/text/unicode/norm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderResolutionCache_OneRoundTripPerKey(t *testing.T) {
	remote := newFakeRemote()
	cache := NewFolderResolutionCache(remote)
	ctx := context.Background()

	first, err := cache.ResolveOrCreate(ctx, "root", "photos")
	require.NoError(t, err)

	second, err := cache.ResolveOrCreate(ctx, "root", "photos")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, remote.lookups, 1, "cache hit must not reach the remote")
	assert.Equal(t, 1, cache.Len())
}

func TestFolderResolutionCache_DistinctKeys(t *testing.T) {
	remote := newFakeRemote()
	cache := NewFolderResolutionCache(remote)
	ctx := context.Background()

	a, err := cache.ResolveOrCreate(ctx, "root", "docs")
	require.NoError(t, err)

	// Same name under a different parent is a different folder.
	b, err := cache.ResolveOrCreate(ctx, "other-parent", "docs")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, remote.lookups, 2)
}

func TestFolderResolutionCache_ErrorsAreNotCached(t *testing.T) {
	remote := newFakeRemote()
	remote.failLookups["broken"] = true
	cache := NewFolderResolutionCache(remote)
	ctx := context.Background()

	_, err := cache.ResolveOrCreate(ctx, "root", "broken")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	// The folder becomes resolvable again; the failure must not stick.
	remote.failLookups["broken"] = false

	id, err := cache.ResolveOrCreate(ctx, "root", "broken")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestFolderResolutionCache_ResetDropsEntries(t *testing.T) {
	remote := newFakeRemote()
	cache := NewFolderResolutionCache(remote)
	ctx := context.Background()

	_, err := cache.ResolveOrCreate(ctx, "root", "photos")
	require.NoError(t, err)

	cache.Reset()
	assert.Equal(t, 0, cache.Len())

	_, err = cache.ResolveOrCreate(ctx, "root", "photos")
	require.NoError(t, err)
	assert.Len(t, remote.lookups, 2, "reset must force a fresh round trip")
}

func TestFolderResolutionCache_NormalizesNames(t *testing.T) {
	remote := newFakeRemote()
	cache := NewFolderResolutionCache(remote)
	ctx := context.Background()

	nfc := "café"
	nfd := norm.NFD.String(nfc)
	require.NotEqual(t, nfc, nfd)

	a, err := cache.ResolveOrCreate(ctx, "root", nfc)
	require.NoError(t, err)

	b, err := cache.ResolveOrCreate(ctx, "root", nfd)
	require.NoError(t, err)

	assert.Equal(t, a, b, "NFD and NFC spellings must resolve to one folder")
	assert.Len(t, remote.lookups, 1)
}
