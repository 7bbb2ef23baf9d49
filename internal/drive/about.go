package drive

import (
	"context"
	"net/http"
	"strconv"
)

// About fetches the authenticated user and storage quota.
func (c *Client) About(ctx context.Context) (About, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/about?fields=storageQuota,user", nil)
	if err != nil {
		return About{}, err
	}

	var raw aboutResponse
	if err := decodeJSON(resp, &raw); err != nil {
		return About{}, err
	}

	about := About{
		UserName:  raw.User.DisplayName,
		UserEmail: raw.User.EmailAddress,
		Limit:     parseQuota(raw.StorageQuota.Limit),
		Usage:     parseQuota(raw.StorageQuota.Usage),
		InDrive:   parseQuota(raw.StorageQuota.UsageInDrive),
		InTrash:   parseQuota(raw.StorageQuota.UsageInDriveTrash),
	}

	return about, nil
}

// parseQuota parses a quota field. The API omits the limit entirely for
// unlimited accounts, which maps to zero.
func parseQuota(s string) int64 {
	if s == "" {
		return 0
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}

	return n
}
