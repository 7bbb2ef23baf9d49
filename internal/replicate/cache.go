package replicate

import (
	"context"

	"golang.org/x/text/unicode/norm"
)

type cacheKey struct {
	parentID string
	name     string
}

// FolderResolutionCache remembers (parent id, folder name) to folder id
// resolutions so each unique folder costs at most one remote round trip
// per run. Confined to the run goroutine, so no locking.
type FolderResolutionCache struct {
	client  RemoteClient
	entries map[cacheKey]string
}

// NewFolderResolutionCache creates an empty cache backed by client.
func NewFolderResolutionCache(client RemoteClient) *FolderResolutionCache {
	return &FolderResolutionCache{
		client:  client,
		entries: make(map[cacheKey]string),
	}
}

// Reset drops every entry. Called at run start so ids cached by a
// previous run are never trusted again.
func (c *FolderResolutionCache) Reset() {
	c.entries = make(map[cacheKey]string)
}

// Len reports the number of cached resolutions.
func (c *FolderResolutionCache) Len() int {
	return len(c.entries)
}

// ResolveOrCreate returns the remote id of the folder named name
// directly under parentID, consulting the cache before the remote.
// Names are normalized to NFC before keying and querying so macOS NFD
// spellings and remote NFC spellings land on the same folder.
func (c *FolderResolutionCache) ResolveOrCreate(ctx context.Context, parentID, name string) (string, error) {
	name = norm.NFC.String(name)
	key := cacheKey{parentID: parentID, name: name}

	if id, ok := c.entries[key]; ok {
		return id, nil
	}

	id, err := c.client.LookupOrCreateFolder(ctx, parentID, name)
	if err != nil {
		return "", err
	}

	c.entries[key] = id

	return id, nil
}
